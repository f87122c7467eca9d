package bench

import (
	"errors"
	"fmt"
)

// ErrPhaseAborted is matched by every error that stopped a run.
var ErrPhaseAborted = errors.New("phase aborted")

// Phase names a stage of a benchmark run.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseWarmup   Phase = "warmup"
	PhaseMeasure  Phase = "measure"
	PhaseTeardown Phase = "teardown"
)

// PhaseError reports the phase and invocation in which a run failed.
// Invocation is 1-based and zero for setup and teardown.
type PhaseError struct {
	Phase      Phase
	Invocation int
	Err        error
}

func (e *PhaseError) Error() string {
	if e.Invocation > 0 {
		return fmt.Sprintf("%s invocation %d failed: %v", e.Phase, e.Invocation, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPhaseAborted) true for any PhaseError.
func (e *PhaseError) Is(target error) bool {
	return target == ErrPhaseAborted
}
