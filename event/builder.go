package event

import (
	"time"

	"github.com/iidesho/replog/vclock"
)

type builder struct {
	payload            Payload
	systemTimestamp    int64
	vectorTimestamp    vclock.VectorTime
	emitterReplicaId   string
	emitterAggregateId *string
	custom             Destinations
}

type Builder interface {
	WithPayload(p Payload) builder
	WithSystemTimestamp(epochMillis int64) builder
	WithVectorTimestamp(vt vclock.VectorTime) builder
	WithEmitterReplicaId(replicaId string) builder
	WithEmitterAggregateId(aggregateId string) builder
	WithCustomRoutingDestinations(ids ...string) builder
	Build() (ev Event, err error)
}

func NewBuilder() Builder {
	return builder{}
}

func (b builder) WithPayload(p Payload) builder {
	b.payload = p
	return b
}

func (b builder) WithSystemTimestamp(epochMillis int64) builder {
	b.systemTimestamp = epochMillis
	return b
}

func (b builder) WithVectorTimestamp(vt vclock.VectorTime) builder {
	b.vectorTimestamp = vt
	return b
}

func (b builder) WithEmitterReplicaId(replicaId string) builder {
	b.emitterReplicaId = replicaId
	return b
}

func (b builder) WithEmitterAggregateId(aggregateId string) builder {
	b.emitterAggregateId = &aggregateId
	return b
}

func (b builder) WithCustomRoutingDestinations(ids ...string) builder {
	b.custom = b.custom.Union(NewDestinations(ids...))
	return b
}

// Build produces a fresh event with provenance at the undefined defaults,
// the shape an event has before its first append. The system timestamp
// defaults to now when not provided.
func (b builder) Build() (ev Event, err error) {
	if b.emitterReplicaId == "" {
		err = MissingEmitterError
		return
	}
	if b.systemTimestamp == 0 {
		b.systemTimestamp = time.Now().UnixMilli()
	}
	ev = Event{
		Payload:                   b.payload,
		SystemTimestamp:           b.systemTimestamp,
		VectorTimestamp:           b.vectorTimestamp,
		EmitterReplicaId:          b.emitterReplicaId,
		EmitterAggregateId:        b.emitterAggregateId,
		CustomRoutingDestinations: b.custom.Union(nil),
		SourceLogId:               UndefinedLogId,
		TargetLogId:               UndefinedLogId,
		SourceLogSequenceNr:       UndefinedSequenceNr,
		TargetLogSequenceNr:       UndefinedSequenceNr,
	}
	return
}
