package source

import (
	"context"
	"encoding/json"
	"io"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// Slice is a RecordSource over documents held in memory. Documents are not
// validated; they are assumed to be JSON already.
type Slice struct {
	docs []json.RawMessage
	pos  int
}

// NewSlice returns a Slice over docs.
func NewSlice(docs ...json.RawMessage) *Slice {
	return &Slice{docs: docs}
}

// NewSliceOf marshals each value and returns a Slice over the results.
func NewSliceOf[T any](values []T) (*Slice, error) {
	docs := make([]json.RawMessage, len(values))
	for i, v := range values {
		doc, err := json.Marshal(v)
		if err != nil {
			return nil, &MalformedError{Seq: uint64(i + 1), Err: err}
		}
		docs[i] = doc
	}
	return NewSlice(docs...), nil
}

// Next implements batch.RecordSource.
func (s *Slice) Next(ctx context.Context) (batch.Record, error) {
	if err := ctx.Err(); err != nil {
		return batch.Record{}, err
	}
	if s.pos >= len(s.docs) {
		return batch.Record{}, io.EOF
	}
	s.pos++
	return batch.NewRecord(uint64(s.pos), 0, s.docs[s.pos-1]), nil
}

// Len returns the total number of documents.
func (s *Slice) Len() int {
	return len(s.docs)
}

// Reset rewinds the source so it can be read again.
func (s *Slice) Reset() {
	s.pos = 0
}
