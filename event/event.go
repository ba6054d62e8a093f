package event

import (
	"fmt"

	"github.com/iidesho/replog/vclock"
)

const (
	// UndefinedLogId marks an event that has never been replicated. The
	// literal is part of the persisted format, do not change it.
	UndefinedLogId = ""
	// UndefinedSequenceNr marks a sequence number that has not been
	// assigned by a log writer. The literal is 1, not 0, for compatibility
	// with already persisted data.
	UndefinedSequenceNr uint64 = 1

	processIdSeparator = "-"
)

var MissingEmitterError = fmt.Errorf("emitter replica id is missing")

// Payload is the application data an event carries. The log never inspects
// it; Type names the application-level encoding of Data so payloads
// round-trip bit for bit across replicas.
type Payload struct {
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// Event is one immutable, causally timestamped write. All methods that
// appear to modify an event return a new value; the receiver is never
// touched, so events are freely shareable across goroutines.
//
// SourceLogId/TargetLogId and the two sequence numbers are the event's
// provenance: the log it most recently came from and the log it currently
// resides in. A freshly emitted event has both log ids at UndefinedLogId and
// both sequence numbers at UndefinedSequenceNr.
type Event struct {
	Payload                   Payload           `json:"payload"`
	SystemTimestamp           int64             `json:"systemTimestamp"`
	VectorTimestamp           vclock.VectorTime `json:"vectorTimestamp"`
	EmitterReplicaId          string            `json:"emitterReplicaId"`
	EmitterAggregateId        *string           `json:"emitterAggregateId,omitempty"`
	CustomRoutingDestinations Destinations      `json:"customRoutingDestinations"`
	SourceLogId               string            `json:"sourceLogId"`
	TargetLogId               string            `json:"targetLogId"`
	SourceLogSequenceNr       uint64            `json:"sourceLogSequenceNr"`
	TargetLogSequenceNr       uint64            `json:"targetLogSequenceNr"`
}

// ProcessId derives the composite emitter identity from a replica id and an
// optional aggregate id. It is pure and total; it does not guard against
// separator collisions (replica "a-b" vs replica "a" with aggregate "b"),
// choosing collision free replica ids is a caller responsibility.
func ProcessId(replicaId string, aggregateId *string) string {
	if aggregateId == nil {
		return replicaId
	}
	return replicaId + processIdSeparator + *aggregateId
}

// SequenceNr is the canonical local sequence number of the event, the one
// assigned by the log it currently resides in.
func (e Event) SequenceNr() uint64 {
	return e.TargetLogSequenceNr
}

// EmitterProcessId identifies the logical emitter of the event, combining
// replica and aggregate identity.
func (e Event) EmitterProcessId() string {
	return ProcessId(e.EmitterReplicaId, e.EmitterAggregateId)
}

// Emitter reports whether the event was emitted by the given process.
// Consumers use it to skip their own writes.
func (e Event) Emitter(processId string) bool {
	return e.EmitterProcessId() == processId
}

// DefaultRoutingDestination is the emitter's aggregate id, when present.
func (e Event) DefaultRoutingDestination() (string, bool) {
	if e.EmitterAggregateId == nil {
		return "", false
	}
	return *e.EmitterAggregateId, true
}

// RoutingDestinations is the set of aggregate ids this event is delivered
// to: the custom destinations plus the emitter's own aggregate. An empty
// result does not suppress delivery to aggregate-unscoped consumers, that
// rule belongs to the dispatcher.
func (e Event) RoutingDestinations() Destinations {
	out := e.CustomRoutingDestinations.Union(nil)
	if id, ok := e.DefaultRoutingDestination(); ok {
		out[id] = struct{}{}
	}
	return out
}

// Appended returns a copy of the event holding the log id and sequence
// number the log writer assigned at append time. Log writers must assign
// sequence numbers monotonically and exactly once per event instance.
func (e Event) Appended(logId string, sequenceNr uint64) Event {
	e.TargetLogId = logId
	e.TargetLogSequenceNr = sequenceNr
	return e
}

// Replicate rewrites the event's provenance for one replication hop from
// sourceLogId to targetLogId: the previous target log and sequence number
// become the source fields, the target log is set to the destination and the
// target sequence number reset until the destination log appends the event.
// Payload, timestamps, emitter identity and routing destinations never
// change.
//
// Reapplying the same hop to an already rewritten, not yet appended event is
// a no-op, so a replication writer may retry safely before append.
func (e Event) Replicate(sourceLogId, targetLogId string) Event {
	if e.SourceLogId == sourceLogId && e.TargetLogId == targetLogId {
		return e
	}
	e.SourceLogId = sourceLogId
	e.SourceLogSequenceNr = e.TargetLogSequenceNr
	e.TargetLogId = targetLogId
	e.TargetLogSequenceNr = UndefinedSequenceNr
	return e
}

// Replicated reports whether the event has crossed at least one log
// boundary.
func (e Event) Replicated() bool {
	return e.SourceLogId != UndefinedLogId
}
