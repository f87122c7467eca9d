package batch

import (
	"context"
	"encoding/json"
)

// Record is a single parsed value read from a RecordSource. Records are
// immutable once produced; the document bytes returned by Doc must not be
// modified.
type Record struct {
	seq  uint64
	line uint64
	doc  json.RawMessage
}

// NewRecord returns a Record. seq is the 1-based position of the record in its
// source and line is the 1-based line it was read from (0 if not line-based).
func NewRecord(seq, line uint64, doc json.RawMessage) Record {
	return Record{
		seq:  seq,
		line: line,
		doc:  doc,
	}
}

// Seq returns the 1-based position of the record in its source.
func (r Record) Seq() uint64 {
	return r.seq
}

// Line returns the line number the record was read from.
func (r Record) Line() uint64 {
	return r.line
}

// Doc returns the raw JSON document.
func (r Record) Doc() json.RawMessage {
	return r.doc
}

// Decode unmarshals the document into v.
func (r Record) Decode(v interface{}) error {
	return json.Unmarshal(r.doc, v)
}

// ActionType is the bulk operation applied to a document.
type ActionType string

const (
	// ActionIndex indexes the document, replacing any document with the same ID.
	ActionIndex ActionType = "index"
	// ActionCreate indexes the document only if its ID does not exist yet.
	ActionCreate ActionType = "create"
)

// Action describes what a sink should do with a document. An empty Index means
// the sink's default index.
type Action struct {
	Type  ActionType
	Index string
	ID    string
}

// ActionFunc decides the Action for a Record.
type ActionFunc func(r Record) Action

// IndexInto returns an ActionFunc that indexes every record into index with a
// server-assigned ID.
func IndexInto(index string) ActionFunc {
	return func(Record) Action {
		return Action{Type: ActionIndex, Index: index}
	}
}

// Op pairs a document with the action to perform on it.
type Op struct {
	Action Action
	Record Record
}

// Batch is an ordered group of operations dispatched to a Sink as one unit.
// Every batch produced by a Batcher holds exactly Limit ops, except possibly
// the last one of a source.
type Batch struct {
	// ID uniquely identifies the batch across runs.
	ID string

	// Seq is the 1-based position of the batch in the sequence produced by a
	// Batcher.
	Seq uint64

	// Limit is the target size N the batch was built with.
	Limit int

	// Ops holds the operations in source order.
	Ops []Op
}

// Len returns the number of ops in the batch.
func (b *Batch) Len() int {
	return len(b.Ops)
}

// Records returns the records of the batch in order.
func (b *Batch) Records() []Record {
	records := make([]Record, len(b.Ops))
	for i, op := range b.Ops {
		records[i] = op.Record
	}
	return records
}

// RecordSource is a lazy, single-pass sequence of records. Next returns io.EOF
// once the source is exhausted.
type RecordSource interface {
	Next(ctx context.Context) (Record, error)
}

// Batches is a lazy, single-pass sequence of batches. Next returns io.EOF once
// there are no more batches.
type Batches interface {
	Next(ctx context.Context) (*Batch, error)
}

// Ack is what a Sink reports for a batch it handled. If both counts are zero
// the Dispatcher treats every op of the batch as accepted.
type Ack struct {
	Accepted int
	Rejected int
}

// Sink receives batches from a Dispatcher.
type Sink interface {
	// Send hands the whole batch to the sink. An error means the batch as a
	// whole failed; per-document failures are reported through Ack.Rejected.
	//
	// Send may be called concurrently when the Dispatcher runs with a
	// concurrency bound above one. Retrying is the sink's own business.
	Send(ctx context.Context, b *Batch) (Ack, error)
}

// SinkFunc is a function type that implements the Sink interface.
type SinkFunc func(ctx context.Context, b *Batch) (Ack, error)

// Send implements the Sink interface.
func (f SinkFunc) Send(ctx context.Context, b *Batch) (Ack, error) {
	return f(ctx, b)
}
