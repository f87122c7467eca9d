package batch

import (
	"time"
)

// Status is the final state of a dispatched batch.
type Status int

const (
	// Succeeded means the sink handled the batch. Individual records may still
	// have been rejected; see Outcome.Rejected.
	Succeeded Status = iota
	// Failed means the sink returned an error for the batch as a whole.
	Failed
	// Cancelled marks the terminal outcome of a dispatch stopped by its context.
	Cancelled
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome reports what happened to one batch. Outcomes never hold records.
//
// A dispatch stopped by cancellation ends with one extra Outcome whose Status
// is Cancelled. It is not tied to a batch: BatchID is empty and Seq is zero.
type Outcome struct {
	BatchID string
	Seq     uint64
	Size    int
	Status  Status

	// Accepted and Rejected are the record counts reported by the sink. Every
	// record of a Failed batch counts as rejected.
	Accepted int
	Rejected int

	// Err is a *SinkError for Failed outcomes and matches ErrCancelled for the
	// Cancelled outcome.
	Err error

	Started  time.Time
	Finished time.Time
}

// OK reports whether the batch succeeded.
func (o Outcome) OK() bool {
	return o.Status == Succeeded
}

// Duration returns how long the sink call took.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Collect drains outcomes and returns them in the order they were received.
func Collect(outcomes <-chan Outcome) []Outcome {
	var result []Outcome
	for o := range outcomes {
		result = append(result, o)
	}
	return result
}

// IgnoreOutcomes starts a goroutine that reads outcomes and discards them.
// Use it when only Dispatcher.Done and Dispatcher.Err matter:
//
//	batch.IgnoreOutcomes(d.Go(ctx, batches))
//	<-d.Done()
func IgnoreOutcomes(outcomes <-chan Outcome) {
	go func() {
		for range outcomes {
		}
	}()
}

// Summary aggregates a set of outcomes.
type Summary struct {
	Batches   int
	Succeeded int
	Failed    int
	Cancelled bool

	// Records is the number of records in dispatched batches.
	Records  int
	Accepted int
	Rejected int

	// FirstErr is the error of the first failed outcome, if any.
	FirstErr error
}

// Summarize aggregates outcomes. The Cancelled outcome is not counted as a batch.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		if o.Status == Cancelled {
			s.Cancelled = true
			continue
		}

		s.Batches++
		s.Records += o.Size
		s.Accepted += o.Accepted
		s.Rejected += o.Rejected

		switch o.Status {
		case Succeeded:
			s.Succeeded++
		case Failed:
			s.Failed++
			if s.FirstErr == nil {
				s.FirstErr = o.Err
			}
		}
	}
	return s
}

// Unsuccessful returns the number of records that did not make it into the
// sink: those rejected individually plus every record of a failed batch.
func (s Summary) Unsuccessful() int {
	return s.Records - s.Accepted
}
