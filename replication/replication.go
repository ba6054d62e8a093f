package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/iidesho/bragi/sbragi"
	"github.com/pkg/errors"

	"github.com/iidesho/replog/event"
	"github.com/iidesho/replog/eventlog"
	"github.com/iidesho/replog/metrics"
	"github.com/iidesho/replog/vclock"
)

var log = sbragi.WithLocalScope(sbragi.LevelInfo)

var SameLogError = fmt.Errorf("source and target log are the same")

const DefaultBatchSize = 100

// Replicator ships batches of events from a source log to a target log,
// rewriting each event's provenance exactly once per hop. The read cursor
// lives in the target log's replication progress, so a replicator can be
// dropped and rebuilt without rereading consumed events.
type Replicator struct {
	source    *eventlog.Log
	target    *eventlog.Log
	batchSize int
}

func New(source, target *eventlog.Log, batchSize int) (r *Replicator, err error) {
	if source.Id() == target.Id() {
		err = SameLogError
		return
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	r = &Replicator{
		source:    source,
		target:    target,
		batchSize: batchSize,
	}
	return
}

// ReadBatch produces the next replicated batch from the source log,
// starting one past the target's recorded progress. The batch carries the
// source log id and the source-side cursor; its events still hold
// source-side provenance until Replicate is applied.
func (r *Replicator) ReadBatch() (b event.Batch) {
	from := r.target.ReplicationProgress(r.source.Id()) + 1
	b = r.source.Read(from, r.batchSize)
	sourceId := r.source.Id()
	b.SourceLogId = &sourceId
	return
}

// ReplicateOnce transfers one batch and returns the number of events
// written to the target. An empty batch is a no-op. Events the target has
// already seen are skipped, so replication rings of any length do not cycle
// events back into a log that holds them: an event whose vector timestamp
// is covered by the target's version was delivered there before, no matter
// how many hops it took since. Events whose previous hop was the target
// are skipped on provenance alone, which also covers events carrying no
// vector timestamp in a two-log exchange; events at or below the recorded
// progress are never read again.
func (r *Replicator) ReplicateOnce(ctx context.Context) (n int, err error) {
	b := r.ReadBatch()
	if len(b.Events) == 0 {
		return
	}
	targetVersion := r.target.Version()
	rewritten := make([]event.Event, 0, len(b.Events))
	for _, e := range b.Events {
		if e.SourceLogId == r.target.Id() || delivered(e, targetVersion) {
			continue
		}
		rewritten = append(rewritten, e.Replicate(r.source.Id(), r.target.Id()))
	}
	stored, err := r.target.Append(ctx, rewritten...)
	if err != nil {
		err = errors.Wrapf(err, "replicating %s to %s", r.source.Id(), r.target.Id())
		return
	}
	if b.LastSourceLogSequenceNrRead != nil {
		r.target.SetReplicationProgress(r.source.Id(), *b.LastSourceLogSequenceNrRead)
	}
	n = len(stored)
	metrics.EventsReplicated.WithLabelValues(r.source.Id(), r.target.Id()).
		Add(float64(n))
	log.Trace("replicated batch",
		"source", r.source.Id(), "target", r.target.Id(), "events", n)
	return
}

// delivered reports whether the target log already causally covers the
// event. Events without a vector timestamp carry no causal information and
// are never judged delivered on this rule.
func delivered(e event.Event, targetVersion vclock.VectorTime) bool {
	if len(e.VectorTimestamp) == 0 {
		return false
	}
	ord := e.VectorTimestamp.Compare(targetVersion)
	return ord == vclock.Before || ord == vclock.Equal
}

// Run polls the source log until ctx is done.
func (r *Replicator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := r.ReplicateOnce(ctx)
			if errors.Is(err, context.Canceled) {
				return
			}
			log.WithError(err).Error("replicating",
				"source", r.source.Id(), "target", r.target.Id())
		}
	}
}
