package event

// Batch is a contiguous, ordered group of events exchanged in one
// replication transfer. Order is append and delivery order. An empty batch
// is valid and means "no new events", never an error.
type Batch struct {
	Events []Event `json:"events"`
	// SourceLogId is present iff the batch arrived via replication.
	SourceLogId *string `json:"sourceLogId,omitempty"`
	// LastSourceLogSequenceNrRead is the highest source-side sequence
	// number consumed when the batch was produced. Replication readers
	// resume their cursor from it; it carries source log numbers, never
	// the target-side SequenceNr of the contained events.
	LastSourceLogSequenceNrRead *uint64 `json:"lastSourceLogSequenceNrRead,omitempty"`
}

// Replicated reports whether the batch came from another log.
func (b Batch) Replicated() bool {
	return b.SourceLogId != nil
}

// HighestSequenceNr is the local sequence number of the last event, absent
// for an empty batch.
func (b Batch) HighestSequenceNr() (uint64, bool) {
	if len(b.Events) == 0 {
		return 0, false
	}
	return b.Events[len(b.Events)-1].SequenceNr(), true
}
