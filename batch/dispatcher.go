package batch

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// closedDone is a pre-closed channel returned by Done when Go has not been
// called yet. This prevents callers from blocking on a nil channel.
var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Dispatcher issues batches to a Sink and reports one Outcome per batch.
//
// To create a new Dispatcher, call NewDispatcher:
//
//	d, err := batch.NewDispatcher(sink, batch.Policy{Concurrency: 4})
//
// Dispatcher runs asynchronously after Go is called. When dispatch is
// complete, the outcome channel returned from Go is closed and the channel
// returned from Done is closed.
//
// The sink is called exactly once for each batch pulled from the sequence.
// A failing sink call produces a Failed outcome; dispatch then carries on
// unless the policy has StopOnError set. A failing batch sequence is fatal:
// no more batches are pulled, calls in flight finish, and the error is
// available from Err once Done is closed.
//
// When the context is cancelled, no new batch is started. Calls already in
// flight run to completion on a context that is not cancelled, their outcomes
// are reported, and the dispatch ends with an Outcome whose Status is
// Cancelled.
type Dispatcher struct {
	sink   Sink
	policy Policy
	logger Logger
	stats  StatsCollector

	mu      sync.Mutex
	running bool
	done    chan struct{}
	err     error
}

// NewDispatcher creates a Dispatcher that sends batches to sink according to
// policy.
func NewDispatcher(sink Sink, policy Policy) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("sink cannot be nil")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &Dispatcher{
		sink:   sink,
		policy: policy,
	}, nil
}

// WithLogger sets a custom logger for the Dispatcher.
// If not set, no logging occurs.
//
// Panics if called after Go() has started to prevent data races and confusion.
func (d *Dispatcher) WithLogger(logger Logger) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		panic("batch: WithLogger cannot be called after Go() has started")
	}

	d.logger = logger
	return d
}

// WithStats sets a stats collector for the Dispatcher.
// If not set, no statistics are collected.
//
// Example:
//
//	stats := batch.NewBasicStatsCollector()
//	d.WithStats(stats)
//
//	// Later, retrieve statistics
//	currentStats := stats.GetStats()
//
// Panics if called after Go() has started to prevent data races and confusion.
func (d *Dispatcher) WithStats(stats StatsCollector) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		panic("batch: WithStats cannot be called after Go() has started")
	}

	d.stats = stats
	return d
}

// Policy returns the dispatch policy.
func (d *Dispatcher) Policy() Policy {
	return d.policy
}

// Go starts dispatching the batches and returns a channel of outcomes. The
// channel is closed once every outcome has been sent.
//
// The caller must drain the channel; the dispatcher blocks until each outcome
// has been received. IgnoreOutcomes can be used when they are not needed.
//
// Go must only be called once at a time. Calling Go again while a dispatch is
// already running will cause a panic.
func (d *Dispatcher) Go(ctx context.Context, batches Batches) <-chan Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		panic("Concurrent calls to Dispatcher.Go are not allowed")
	}

	if d.logger == nil {
		d.logger = &NoOpLogger{}
	}
	if d.stats == nil {
		d.stats = &NoOpStatsCollector{}
	}

	out := make(chan Outcome, d.policy.limit())
	d.done = make(chan struct{})
	d.err = nil

	if batches == nil {
		d.err = errors.New("batches cannot be nil")
		close(out)
		close(d.done)
		return out
	}

	d.running = true
	d.logger.Info("Starting dispatch with policy %s", d.policy)

	go d.run(ctx, batches, out, d.done)

	return out
}

// Done returns a channel that is closed when dispatch is complete.
func (d *Dispatcher) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done == nil {
		return closedDone
	}
	return d.done
}

// Err returns the error that ended the last dispatch early because the batch
// sequence failed, or nil. Sink failures and cancellation are reported on
// outcomes, not here. Err is only meaningful once Done is closed.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Dispatch runs Go and waits for it to finish. It returns every outcome in the
// order received along with Err.
func (d *Dispatcher) Dispatch(ctx context.Context, batches Batches) ([]Outcome, error) {
	outcomes := Collect(d.Go(ctx, batches))
	<-d.Done()
	return outcomes, d.Err()
}

// runResult is how a dispatch loop ended.
type runResult struct {
	dispatched int
	cancelled  error
	fatal      error
}

func (d *Dispatcher) run(ctx context.Context, batches Batches, out chan<- Outcome, done chan struct{}) {
	var res runResult
	if d.policy.Sequential() {
		res = d.runSequential(ctx, batches, out)
	} else {
		res = d.runConcurrent(ctx, batches, out)
	}

	if res.cancelled != nil {
		d.logger.Warn("Dispatch cancelled after %d batches: %v", res.dispatched, res.cancelled)
		now := time.Now()
		out <- Outcome{
			Status:   Cancelled,
			Err:      cancelledError(res.cancelled),
			Started:  now,
			Finished: now,
		}
	}

	if res.fatal != nil {
		d.logger.Error("Dispatch stopped after %d batches: %v", res.dispatched, res.fatal)
		d.stats.RecordSourceError()
	} else {
		d.logger.Info("Dispatch complete. Total batches: %d", res.dispatched)
	}

	d.mu.Lock()
	d.err = res.fatal
	d.running = false
	d.mu.Unlock()

	close(out)
	close(done)
}

// runSequential dispatches one batch at a time, so outcomes are sent in batch
// order.
func (d *Dispatcher) runSequential(ctx context.Context, batches Batches, out chan<- Outcome) runResult {
	sendCtx := context.WithoutCancel(ctx)
	var res runResult

	for {
		if err := ctx.Err(); err != nil {
			res.cancelled = err
			return res
		}

		b, err := batches.Next(ctx)
		if err == io.EOF {
			return res
		}
		if err != nil {
			res.cancelled, res.fatal = d.classify(ctx, err)
			return res
		}

		o := d.send(sendCtx, b)
		res.dispatched++
		out <- o

		if !o.OK() && d.policy.StopOnError {
			d.logger.Warn("Stopping dispatch after failed batch %d", o.Seq)
			return res
		}
	}
}

type completion struct {
	slot    uint64
	outcome Outcome
}

type pulled struct {
	batch *Batch
	err   error
}

// runConcurrent keeps up to limit sink calls in flight. Batches are pulled on
// a separate goroutine, one at a time and only while a slot is free, so
// completions are reported while the sequence is blocked. This goroutine is
// the only one that touches pending.
//
// A pull already under way when a batch fails with StopOnError set is allowed
// to finish, and its batch is sent.
func (d *Dispatcher) runConcurrent(ctx context.Context, batches Batches, out chan<- Outcome) runResult {
	limit := d.policy.limit()
	sendCtx := context.WithoutCancel(ctx)
	completions := make(chan completion, limit)
	pending := make(map[uint64]string, limit)

	requests := make(chan struct{})
	pulls := make(chan pulled)
	defer close(requests)
	go func() {
		for range requests {
			b, err := batches.Next(ctx)
			pulls <- pulled{batch: b, err: err}
		}
	}()

	var (
		res      runResult
		nextSlot uint64
		pulling  = true
		waiting  bool
	)

	for {
		if pulling && !waiting && len(pending) < limit {
			if err := ctx.Err(); err != nil {
				res.cancelled = err
				pulling = false
			} else {
				requests <- struct{}{}
				waiting = true
			}
		}

		if !waiting && len(pending) == 0 {
			return res
		}

		var next <-chan pulled
		if waiting {
			next = pulls
		}

		select {
		case p := <-next:
			waiting = false
			switch {
			case p.err == nil:
				nextSlot++
				pending[nextSlot] = p.batch.ID
				res.dispatched++

				go func(slot uint64, b *Batch) {
					completions <- completion{slot: slot, outcome: d.send(sendCtx, b)}
				}(nextSlot, p.batch)
			case p.err == io.EOF:
				pulling = false
			default:
				res.cancelled, res.fatal = d.classify(ctx, p.err)
				pulling = false
			}

		case c := <-completions:
			delete(pending, c.slot)
			out <- c.outcome

			if !c.outcome.OK() && d.policy.StopOnError && pulling {
				d.logger.Warn("Stopping dispatch after failed batch %d, waiting for %d in flight", c.outcome.Seq, len(pending))
				pulling = false
			}
		}
	}
}

// classify splits an error from the batch sequence into a cancellation or a
// fatal source error.
func (d *Dispatcher) classify(ctx context.Context, err error) (cancelErr, fatal error) {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr, nil
	}

	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		err = &SourceError{Err: err}
	}
	return nil, err
}

func (d *Dispatcher) send(ctx context.Context, b *Batch) Outcome {
	size := b.Len()
	d.stats.RecordBatchStart(size)
	d.logger.Debug("Batch %d: sending %d records", b.Seq, size)

	started := time.Now()
	ack, err := d.sink.Send(ctx, b)
	finished := time.Now()
	duration := finished.Sub(started)
	d.stats.RecordBatchComplete(size, duration)

	o := Outcome{
		BatchID:  b.ID,
		Seq:      b.Seq,
		Size:     size,
		Started:  started,
		Finished: finished,
	}

	if err != nil {
		o.Status = Failed
		o.Rejected = size
		o.Err = &SinkError{BatchID: b.ID, Seq: b.Seq, Err: err}
		d.stats.RecordSinkError()
		d.stats.RecordItemsRejected(size)
		d.logger.Error("Batch %d failed after %v: %v", b.Seq, duration, err)
		return o
	}

	if ack.Accepted == 0 && ack.Rejected == 0 {
		ack.Accepted = size
	}
	o.Status = Succeeded
	o.Accepted = ack.Accepted
	o.Rejected = ack.Rejected
	d.stats.RecordItemsAccepted(ack.Accepted)
	d.stats.RecordItemsRejected(ack.Rejected)

	d.logger.Info("Batch %d complete: %d accepted, %d rejected, duration: %v",
		b.Seq, ack.Accepted, ack.Rejected, duration)
	return o
}
