package sink

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// RetryConfig controls the Retry middleware.
type RetryConfig struct {
	// Attempts is the total number of calls, including the first. Values
	// below one mean one call (no retries).
	Attempts uint

	// Delay is the wait before the first retry; it doubles after each
	// attempt. Defaults to 100ms.
	Delay time.Duration

	// MaxDelay caps the wait between attempts. Defaults to 5s.
	MaxDelay time.Duration

	// RetryIf decides whether an error is retried. Defaults to Transient.
	RetryIf func(error) bool

	// Logger receives a warning for every retry. Optional.
	Logger batch.Logger
}

// Retry wraps a sink and retries failed calls with exponential backoff. The
// whole batch is resent on each attempt, so the wrapped sink should be
// idempotent for the batch (documents with explicit IDs) or the caller must
// accept duplicates.
type Retry struct {
	sink   batch.Sink
	config RetryConfig
}

// NewRetry wraps s with retries.
func NewRetry(s batch.Sink, config RetryConfig) *Retry {
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	if config.Delay <= 0 {
		config.Delay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = Transient
	}
	if config.Logger == nil {
		config.Logger = &batch.NoOpLogger{}
	}

	return &Retry{
		sink:   s,
		config: config,
	}
}

// Send implements batch.Sink. The error of the last attempt is returned.
func (r *Retry) Send(ctx context.Context, b *batch.Batch) (batch.Ack, error) {
	return retry.DoWithData(
		func() (batch.Ack, error) {
			return r.sink.Send(ctx, b)
		},
		retry.Context(ctx),
		retry.Attempts(r.config.Attempts),
		retry.Delay(r.config.Delay),
		retry.MaxDelay(r.config.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(r.config.RetryIf),
		retry.OnRetry(func(n uint, err error) {
			r.config.Logger.Warn("Batch %d attempt %d/%d failed: %v", b.Seq, n+1, r.config.Attempts, err)
		}),
	)
}
