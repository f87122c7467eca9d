package source

import (
	"context"
	"io"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// Channel is a RecordSource that reads JSON documents from a channel. The
// source ends when Input is closed. Documents that are not valid JSON produce
// a *MalformedError.
//
// Channel is useful when documents are generated on the fly, for example by a
// synthetic data generator running in another goroutine.
type Channel struct {
	// Input is the channel from which this source will read documents.
	// The Channel source will not close this channel.
	Input <-chan []byte

	seq uint64
}

// Next implements batch.RecordSource. It blocks until a document is available,
// Input is closed, or ctx is done.
func (s *Channel) Next(ctx context.Context) (batch.Record, error) {
	if s.Input == nil {
		return batch.Record{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return batch.Record{}, ctx.Err()
	case doc, ok := <-s.Input:
		if !ok {
			return batch.Record{}, io.EOF
		}
		if err := validate(doc); err != nil {
			return batch.Record{}, &MalformedError{Seq: s.seq + 1, Err: err}
		}
		s.seq++
		return batch.NewRecord(s.seq, 0, doc), nil
	}
}
