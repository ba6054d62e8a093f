package eventlog

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/iidesho/bragi/sbragi"
	"github.com/pkg/errors"

	"github.com/iidesho/replog/event"
	"github.com/iidesho/replog/metrics"
	"github.com/iidesho/replog/vclock"
)

var log = sbragi.WithLocalScope(sbragi.LevelInfo)

var (
	MissingLogIdError   = fmt.Errorf("log id is missing")
	WrongTargetLogError = fmt.Errorf("event targets a different log")
)

const writeBufferSize = 1024

// Log is an in-memory append-only event log. A single goroutine owns
// sequence number assignment, so numbers are monotonic and gap-free from 1
// no matter how many goroutines append concurrently. Reads see immutable
// event values and need no coordination with appenders beyond the internal
// lock.
type Log struct {
	id       string
	writes   chan writeRequest
	mu       sync.RWMutex
	newData  *sync.Cond
	db       []event.Event
	version  vclock.VectorTime
	progress map[string]uint64
}

type writeRequest struct {
	events []event.Event
	result chan writeResult
}

type writeResult struct {
	stored []event.Event
	err    error
}

func New(id string, ctx context.Context) (l *Log, err error) {
	if id == "" {
		err = MissingLogIdError
		return
	}
	l = &Log{
		id:       id,
		writes:   make(chan writeRequest, writeBufferSize),
		version:  vclock.New(),
		progress: make(map[string]uint64),
	}
	l.newData = sync.NewCond(l.mu.RLocker())
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-l.writes:
				req.result <- l.append(req.events)
			}
		}
	}()
	return
}

func (l *Log) Id() string {
	return l.id
}

// append runs on the writer goroutine only.
func (l *Log) append(events []event.Event) (res writeResult) {
	stored := make([]event.Event, 0, len(events))
	l.mu.Lock()
	defer l.mu.Unlock()
	next := uint64(len(l.db)) + 1
	for _, e := range events {
		if e.TargetLogId != event.UndefinedLogId && e.TargetLogId != l.id {
			res.err = errors.Wrapf(WrongTargetLogError,
				"log %s got event for %s", l.id, e.TargetLogId)
			log.WithError(res.err).Warning("rejecting append", "log", l.id)
			return
		}
		stored = append(stored, e.Appended(l.id, next))
		next++
	}
	for _, e := range stored {
		l.version = l.version.Merge(e.VectorTimestamp)
	}
	l.db = append(l.db, stored...)
	res.stored = stored
	metrics.EventsAppended.WithLabelValues(l.id).Add(float64(len(stored)))
	l.newData.Broadcast()
	return
}

// Append writes events in order and returns the stored copies carrying this
// log's id and their assigned sequence numbers.
func (l *Log) Append(ctx context.Context, events ...event.Event) (stored []event.Event, err error) {
	if len(events) == 0 {
		return
	}
	req := writeRequest{
		events: events,
		result: make(chan writeResult, 1),
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case l.writes <- req:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-req.result:
		return res.stored, res.err
	}
}

// Read returns a local batch of at most max events starting at
// fromSequenceNr, in append order. The batch's cursor field carries this
// log's own sequence numbers; a replicator shipping the batch elsewhere
// resumes from it. An empty batch means no events are currently available.
func (l *Log) Read(fromSequenceNr uint64, max int) (b event.Batch) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	defer func() {
		metrics.BatchesRead.WithLabelValues(l.id, strconv.FormatBool(len(b.Events) == 0)).Inc()
	}()
	if fromSequenceNr < 1 {
		fromSequenceNr = 1
	}
	if fromSequenceNr > uint64(len(l.db)) {
		return
	}
	to := uint64(len(l.db))
	if max > 0 && fromSequenceNr+uint64(max) <= to {
		to = fromSequenceNr + uint64(max) - 1
	}
	b.Events = append(b.Events, l.db[fromSequenceNr-1:to]...)
	last := to
	b.LastSourceLogSequenceNrRead = &last
	return
}

// HighestSequenceNr is the sequence number of the most recently appended
// event, zero for an empty log.
func (l *Log) HighestSequenceNr() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.db))
}

// Version is the merge of the vector timestamps of every event this log
// holds. An event whose vector timestamp is covered by it has already been
// delivered here, directly or through intermediate logs.
func (l *Log) Version() vclock.VectorTime {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version.Merge(nil)
}

// ReplicationProgress is the highest source-side sequence number this log
// has consumed from sourceLogId, zero when nothing was consumed yet.
func (l *Log) ReplicationProgress(sourceLogId string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.progress[sourceLogId]
}

// SetReplicationProgress records the highest source-side sequence number
// consumed from sourceLogId. Progress never moves backwards.
func (l *Log) SetReplicationProgress(sourceLogId string, sequenceNr uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sequenceNr <= l.progress[sourceLogId] {
		return
	}
	l.progress[sourceLogId] = sequenceNr
}

// Stream delivers stored events from fromSequenceNr onwards, then blocks
// for new appends until ctx is done.
func (l *Log) Stream(fromSequenceNr uint64, ctx context.Context) (out <-chan event.Event) {
	eventChan := make(chan event.Event, writeBufferSize)
	out = eventChan
	if fromSequenceNr < 1 {
		fromSequenceNr = 1
	}
	go func() {
		defer close(eventChan)
		position := fromSequenceNr - 1
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			l.mu.RLock()
			for position >= uint64(len(l.db)) {
				l.newData.Wait()
				select {
				case <-ctx.Done():
					l.mu.RUnlock()
					return
				default:
				}
			}
			e := l.db[position]
			l.mu.RUnlock()
			position++
			select {
			case <-ctx.Done():
				return
			case eventChan <- e:
			}
		}
	}()
	go func() {
		// wake the streamer when ctx ends so it can observe cancellation
		<-ctx.Done()
		l.mu.RLock()
		l.newData.Broadcast()
		l.mu.RUnlock()
	}()
	return
}
