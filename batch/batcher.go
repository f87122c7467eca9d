package batch

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// Batcher groups the records of a RecordSource into batches of a fixed size.
//
// A batch is returned as soon as it holds size records; the Batcher never reads
// a record from the source before the batch that will hold it is requested. At
// the end of the source the remaining records are returned as a final, shorter
// batch, after which Next returns io.EOF without touching the source again.
//
// If the source fails, the records collected for the current batch are dropped
// and Next returns a *SourceError from then on. Context errors are returned
// as-is and also end the sequence.
//
// Batcher implements Batches. It is not safe for concurrent use.
type Batcher struct {
	src    RecordSource
	size   int
	action ActionFunc
	logger Logger

	seq  uint64
	done bool
	err  error
}

// NewBatcher creates a Batcher that reads from src and emits batches of size
// records. It returns ErrInvalidBatchSize if size is less than one.
func NewBatcher(src RecordSource, size int) (*Batcher, error) {
	if size <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if src == nil {
		return nil, errors.New("source cannot be nil")
	}

	return &Batcher{
		src:    src,
		size:   size,
		action: IndexInto(""),
		logger: &NoOpLogger{},
	}, nil
}

// WithAction sets the function that decides the Action of each record. By
// default records are indexed into the sink's default index.
func (b *Batcher) WithAction(fn ActionFunc) *Batcher {
	if fn != nil {
		b.action = fn
	}
	return b
}

// WithLogger sets a logger for the Batcher.
func (b *Batcher) WithLogger(logger Logger) *Batcher {
	b.logger = loggerOrNoOp(logger)
	return b
}

// Size returns the target batch size.
func (b *Batcher) Size() int {
	return b.size
}

// Next returns the next batch. It returns io.EOF when the source is exhausted
// and every record has been returned in a batch.
func (b *Batcher) Next(ctx context.Context) (*Batch, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.done {
		return nil, io.EOF
	}

	ops := make([]Op, 0, b.size)
	for len(ops) < b.size {
		rec, err := b.src.Next(ctx)
		if err == io.EOF {
			b.done = true
			break
		}
		if err != nil {
			if len(ops) > 0 {
				b.logger.Debug("Dropping %d records of incomplete batch %d", len(ops), b.seq+1)
			}
			b.err = b.wrap(ctx, err)
			return nil, b.err
		}
		ops = append(ops, Op{
			Action: b.action(rec),
			Record: rec,
		})
	}

	if len(ops) == 0 {
		return nil, io.EOF
	}

	b.seq++
	b.logger.Debug("Batch %d ready with %d records", b.seq, len(ops))

	return &Batch{
		ID:    uuid.NewString(),
		Seq:   b.seq,
		Limit: b.size,
		Ops:   ops,
	}, nil
}

func (b *Batcher) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return &SourceError{Err: err}
}
