package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// Discard is a Sink that drops every batch, optionally after Delay. It can be
// used for dry runs that measure reading and batching alone, or as a mock
// Sink.
type Discard struct {
	// Delay is how long each call takes.
	Delay time.Duration

	batches uint64
	records uint64
}

// Send implements batch.Sink.
func (d *Discard) Send(ctx context.Context, b *batch.Batch) (batch.Ack, error) {
	if d.Delay > 0 {
		t := time.NewTimer(d.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return batch.Ack{}, ctx.Err()
		case <-t.C:
		}
	}

	atomic.AddUint64(&d.batches, 1)
	atomic.AddUint64(&d.records, uint64(b.Len()))
	return batch.Ack{Accepted: b.Len()}, nil
}

// Batches returns the number of batches received.
func (d *Discard) Batches() uint64 {
	return atomic.LoadUint64(&d.batches)
}

// Records returns the number of records received.
func (d *Discard) Records() uint64 {
	return atomic.LoadUint64(&d.records)
}
