package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreadable means the underlying byte stream could not be opened or
	// read. It is fatal to the run.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrRecordMalformed means a unit of the stream could not be parsed into a
	// Record. It is fatal to the run unless the source was configured to skip
	// malformed records.
	ErrRecordMalformed = errors.New("record malformed")

	// ErrInvalidBatchSize is returned when a Batcher is created with a size below one.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrSinkFailure is matched by every error a Sink returned for a batch.
	ErrSinkFailure = errors.New("sink failure")

	// ErrCancelled is reported on the terminal outcome of a dispatch that was
	// stopped by context cancellation.
	ErrCancelled = errors.New("cancelled")
)

// SourceError is returned when the record source fails while a batch is being
// filled.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error: %v", e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// SinkError is set on the Outcome of a batch the sink failed to handle.
type SinkError struct {
	BatchID string
	Seq     uint64
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: batch %d: %v", e.Seq, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSinkFailure.
func (e *SinkError) Is(target error) bool {
	return target == ErrSinkFailure
}

func cancelledError(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
