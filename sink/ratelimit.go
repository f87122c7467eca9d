package sink

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// RateLimit wraps a sink and holds each batch back until the record rate
// allows it to go out. Batches are sent whole; a batch larger than the burst
// waits for the tokens of several bursts.
type RateLimit struct {
	sink    batch.Sink
	limiter *rate.Limiter
}

// NewRateLimit wraps s so that at most recordsPerSecond records are sent per
// second, with bursts of up to burst records. If burst is below one,
// batch.DefaultBatchSize is used.
func NewRateLimit(s batch.Sink, recordsPerSecond float64, burst int) (*RateLimit, error) {
	if recordsPerSecond <= 0 {
		return nil, errors.Errorf("records per second must be positive, got %v", recordsPerSecond)
	}
	if burst < 1 {
		burst = batch.DefaultBatchSize
	}

	return &RateLimit{
		sink:    s,
		limiter: rate.NewLimiter(rate.Limit(recordsPerSecond), burst),
	}, nil
}

// Send implements batch.Sink.
func (r *RateLimit) Send(ctx context.Context, b *batch.Batch) (batch.Ack, error) {
	burst := r.limiter.Burst()
	for remaining := b.Len(); remaining > 0; remaining -= burst {
		n := remaining
		if n > burst {
			n = burst
		}
		if err := r.limiter.WaitN(ctx, n); err != nil {
			return batch.Ack{}, errors.Wrapf(err, "rate limit for batch %d", b.Seq)
		}
	}
	return r.sink.Send(ctx, b)
}
