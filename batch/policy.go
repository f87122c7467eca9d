package batch

import (
	"errors"
	"fmt"
)

// Policy controls how a Dispatcher issues batches to its sink.
type Policy struct {
	// Concurrency is the maximum number of sink calls in flight. Zero or one
	// means sequential dispatch, where outcomes arrive in batch order. Above
	// one, outcomes may arrive in any order.
	Concurrency int

	// StopOnError makes the first failed batch stop the dispatch. No further
	// batches are pulled; calls already in flight finish and report.
	StopOnError bool
}

// Sequential reports whether the policy allows only one sink call at a time.
func (p Policy) Sequential() bool {
	return p.Concurrency <= 1
}

// limit returns the effective concurrency bound.
func (p Policy) limit() int {
	if p.Sequential() {
		return 1
	}
	return p.Concurrency
}

// Validate checks if the policy is valid.
func (p Policy) Validate() error {
	if p.Concurrency < 0 {
		return errors.New("Concurrency cannot be negative")
	}
	return nil
}

func (p Policy) String() string {
	if p.Sequential() {
		return fmt.Sprintf("sequential(stopOnError=%t)", p.StopOnError)
	}
	return fmt.Sprintf("bounded(k=%d, stopOnError=%t)", p.Concurrency, p.StopOnError)
}
