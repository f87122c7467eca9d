package bench

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/MasterOfBinary/bulkbench/batch"
	"github.com/MasterOfBinary/bulkbench/source"
)

// BulkWorkload configures BulkUnit.
type BulkWorkload struct {
	// Open returns a fresh source positioned at the start of the dataset.
	// It is called once per iteration. If the source implements io.Closer it
	// is closed after the pass.
	Open func() (batch.RecordSource, error)

	Sink      batch.Sink
	BatchSize int
	Policy    batch.Policy

	// Action assigns the bulk action per record. Optional.
	Action batch.ActionFunc

	Logger batch.Logger
	Stats  batch.StatsCollector
}

// OpenFile returns an Open function for BulkWorkload that reads the NDJSON
// file described by config.
func OpenFile(config source.FileConfig) func() (batch.RecordSource, error) {
	return func() (batch.RecordSource, error) {
		f, err := source.NewFile(config)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// BulkUnit returns a unit that streams the dataset through a Batcher and a
// Dispatcher into the workload's sink, once per iteration.
//
// Source errors and cancellation abort the invocation. Records in batches
// the sink failed or rejected are reported as failures instead, unless the
// policy stops on error, in which case the first sink error aborts.
func BulkUnit(w BulkWorkload) Unit {
	return func(ctx context.Context, inv *Invocation) error {
		if w.Open == nil || w.Sink == nil {
			return errors.New("bulk workload needs a dataset and a sink")
		}
		logger := w.Logger
		if logger == nil {
			logger = &batch.NoOpLogger{}
		}

		for i := 0; i < inv.Iterations; i++ {
			src, err := w.Open()
			if err != nil {
				return err
			}

			summary, err := w.pass(ctx, src)
			if c, ok := src.(io.Closer); ok {
				if cerr := c.Close(); cerr != nil {
					logger.Warn("Closing dataset after iteration %d: %v", i+1, cerr)
				}
			}
			if err != nil {
				return err
			}
			inv.AddFailures(int64(summary.Unsuccessful()))
		}
		return nil
	}
}

func (w BulkWorkload) pass(ctx context.Context, src batch.RecordSource) (batch.Summary, error) {
	size := w.BatchSize
	if size == 0 {
		size = batch.DefaultBatchSize
	}

	batcher, err := batch.NewBatcher(src, size)
	if err != nil {
		return batch.Summary{}, err
	}
	batcher.WithAction(w.Action).WithLogger(w.Logger)

	dispatcher, err := batch.NewDispatcher(w.Sink, w.Policy)
	if err != nil {
		return batch.Summary{}, err
	}
	dispatcher.WithLogger(w.Logger).WithStats(w.Stats)

	outcomes, err := dispatcher.Dispatch(ctx, batcher)
	summary := batch.Summarize(outcomes)
	if err != nil {
		return summary, err
	}
	if summary.Cancelled {
		return summary, outcomes[len(outcomes)-1].Err
	}
	if w.Policy.StopOnError && summary.Failed > 0 {
		return summary, summary.FirstErr
	}
	return summary, nil
}

// SearchUnit returns a unit that runs req against q once per iteration.
func SearchUnit(q Querier, req QueryRequest) Unit {
	return func(ctx context.Context, inv *Invocation) error {
		if q == nil {
			return errors.New("search workload needs a querier")
		}

		for i := 0; i < inv.Iterations; i++ {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", batch.ErrCancelled, err)
			}
			if _, err := q.Search(ctx, req); err != nil {
				return errors.WithMessagef(err, "query %d", i+1)
			}
		}
		return nil
	}
}

// CleanupHook returns a hook that deletes the indices matching pattern.
func CleanupHook(d IndexDeleter, pattern string) Hook {
	return func(ctx context.Context) error {
		if pattern == "" {
			return nil
		}
		return errors.WithMessagef(d.DeleteIndex(ctx, pattern), "delete indices %q", pattern)
	}
}
