package eventlog_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iidesho/replog/event"
	"github.com/iidesho/replog/eventlog"
	"github.com/iidesho/replog/metrics"
	"github.com/iidesho/replog/vclock"
)

var logId = "TestLog_" + uuid.Must(uuid.NewV7()).String()

func emit(t testing.TB, payload string) event.Event {
	t.Helper()
	e, err := event.NewBuilder().
		WithPayload(event.Payload{Type: "text", Data: []byte(payload)}).
		WithEmitterReplicaId("R1").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestNewMissingId(t *testing.T) {
	_, err := eventlog.New("", context.Background())
	if err != eventlog.MissingLogIdError {
		t.Fatalf("expected MissingLogIdError, got %v", err)
	}
}

func TestAppendAssignsSequenceNrs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := eventlog.New(logId, ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		stored, err := l.Append(ctx, emit(t, fmt.Sprintf("e%d", i)))
		if err != nil {
			t.Fatal(err)
		}
		if len(stored) != 1 {
			t.Fatalf("stored %d events, expected 1", len(stored))
		}
		if stored[0].SequenceNr() != uint64(i) {
			t.Fatalf("sequenceNr %d on append %d", stored[0].SequenceNr(), i)
		}
		if stored[0].TargetLogId != logId {
			t.Fatalf("target log %q after append", stored[0].TargetLogId)
		}
		if stored[0].Replicated() {
			t.Fatal("locally appended event claims to be replicated")
		}
	}
	if l.HighestSequenceNr() != 5 {
		t.Fatalf("highestSequenceNr %d != 5", l.HighestSequenceNr())
	}
}

func TestAppendRejectsForeignTarget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := eventlog.New("A", ctx)
	if err != nil {
		t.Fatal(err)
	}
	foreign := emit(t, "x").Appended("B", 1).Replicate("B", "C")
	_, err = l.Append(ctx, foreign)
	if !errors.Is(err, eventlog.WrongTargetLogError) {
		t.Fatalf("expected WrongTargetLogError, got %v", err)
	}
	if l.HighestSequenceNr() != 0 {
		t.Fatal("rejected append left events behind")
	}
}

func TestAppendConcurrentMonotonic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := eventlog.New("A", ctx)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	seqs := make(chan uint64, 100)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				stored, err := l.Append(ctx, emit(t, "x"))
				if err != nil {
					t.Error(err)
					return
				}
				seqs <- stored[0].SequenceNr()
			}
		}()
	}
	wg.Wait()
	close(seqs)
	got := make([]uint64, 0, 100)
	for s := range seqs {
		got = append(got, s)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, s := range got {
		if s != uint64(i)+1 {
			t.Fatalf("sequence nrs have a gap or duplicate at %d: %d", i, s)
		}
	}
}

func TestReadBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := eventlog.New("A", ctx)
	if err != nil {
		t.Fatal(err)
	}
	events := make([]event.Event, 0, 7)
	for i := 0; i < 7; i++ {
		events = append(events, emit(t, fmt.Sprintf("e%d", i)))
	}
	if _, err = l.Append(ctx, events...); err != nil {
		t.Fatal(err)
	}

	b := l.Read(1, 3)
	if len(b.Events) != 3 || b.Replicated() {
		t.Fatalf("first read: %d events, replicated=%t", len(b.Events), b.Replicated())
	}
	if high, _ := b.HighestSequenceNr(); high != 3 {
		t.Fatalf("first read highestSequenceNr %d", high)
	}
	if *b.LastSourceLogSequenceNrRead != 3 {
		t.Fatalf("first read cursor %d", *b.LastSourceLogSequenceNrRead)
	}

	b = l.Read(*b.LastSourceLogSequenceNrRead+1, 10)
	if len(b.Events) != 4 {
		t.Fatalf("second read: %d events", len(b.Events))
	}
	if b.Events[0].SequenceNr() != 4 {
		t.Fatalf("second read starts at %d", b.Events[0].SequenceNr())
	}

	b = l.Read(8, 10)
	if len(b.Events) != 0 || b.LastSourceLogSequenceNrRead != nil {
		t.Fatalf("read past end: %d events, cursor %v",
			len(b.Events), b.LastSourceLogSequenceNrRead)
	}
}

func TestVersionCoversAppendedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := eventlog.New("A", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !l.Version().Equal(vclock.New()) {
		t.Fatalf("fresh log has version %s", l.Version())
	}

	timed := func(vt vclock.VectorTime) event.Event {
		e, err := event.NewBuilder().
			WithVectorTimestamp(vt).
			WithEmitterReplicaId("R1").
			Build()
		if err != nil {
			t.Fatal(err)
		}
		return e
	}
	if _, err = l.Append(ctx,
		timed(vclock.New().Tick("R1")),
		timed(vclock.New().Tick("R2").Tick("R2")),
	); err != nil {
		t.Fatal(err)
	}
	want := vclock.VectorTime{"R1": 1, "R2": 2}
	if !l.Version().Equal(want) {
		t.Fatalf("version %s != %s", l.Version(), want)
	}
	// both stored timestamps are now covered
	if got := vclock.New().Tick("R1").Compare(l.Version()); got != vclock.Before {
		t.Fatalf("stored timestamp compares %s to the log version", got)
	}

	v := l.Version()
	v["R9"] = 9
	if l.Version().LocalTime("R9") != 0 {
		t.Fatal("Version exposes the log's internal state")
	}
}

func TestReadMetricLabels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id := "TestReadMetrics_" + uuid.Must(uuid.NewV7()).String()
	l, err := eventlog.New(id, ctx)
	if err != nil {
		t.Fatal(err)
	}
	l.Read(1, 10)
	l.Read(5, 10)
	if got := testutil.ToFloat64(metrics.BatchesRead.WithLabelValues(id, "true")); got != 2 {
		t.Fatalf("empty reads counted %v times, expected 2", got)
	}
	if _, err = l.Append(ctx, emit(t, "x")); err != nil {
		t.Fatal(err)
	}
	l.Read(1, 10)
	if got := testutil.ToFloat64(metrics.BatchesRead.WithLabelValues(id, "false")); got != 1 {
		t.Fatalf("non-empty reads counted %v times, expected 1", got)
	}
	if got := testutil.ToFloat64(metrics.BatchesRead.WithLabelValues(id, "true")); got != 2 {
		t.Fatalf("non-empty read counted as empty: %v", got)
	}
}

func TestReplicationProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := eventlog.New("A", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if l.ReplicationProgress("B") != 0 {
		t.Fatal("fresh log has progress")
	}
	l.SetReplicationProgress("B", 10)
	l.SetReplicationProgress("B", 7)
	if l.ReplicationProgress("B") != 10 {
		t.Fatalf("progress moved backwards: %d", l.ReplicationProgress("B"))
	}
	if l.ReplicationProgress("C") != 0 {
		t.Fatal("progress leaks between source logs")
	}
}

func TestStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := eventlog.New("A", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = l.Append(ctx, emit(t, "e1"), emit(t, "e2")); err != nil {
		t.Fatal(err)
	}
	streamCtx, streamCancel := context.WithCancel(ctx)
	defer streamCancel()
	out := l.Stream(1, streamCtx)

	for want := uint64(1); want <= 2; want++ {
		select {
		case e := <-out:
			if e.SequenceNr() != want {
				t.Fatalf("streamed %d, expected %d", e.SequenceNr(), want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for stored event")
		}
	}

	if _, err = l.Append(ctx, emit(t, "e3")); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-out:
		if e.SequenceNr() != 3 {
			t.Fatalf("streamed %d after live append", e.SequenceNr())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live event")
	}
}
