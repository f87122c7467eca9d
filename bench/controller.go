package bench

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// Invocation is passed to every call of a Unit.
type Invocation struct {
	Phase Phase
	// Index is the 1-based position of the invocation within its phase.
	Index int
	// Iterations is the number of times the unit should repeat its work.
	Iterations int

	failures int64
}

// AddFailures records n units of work that failed without aborting the
// invocation. Only the goroutine running the unit may call it.
func (inv *Invocation) AddFailures(n int64) {
	inv.failures += n
}

// Failures returns the failures recorded so far.
func (inv *Invocation) Failures() int64 {
	return inv.failures
}

// Unit is the work being benchmarked. An error aborts the run.
type Unit func(ctx context.Context, inv *Invocation) error

// Hook runs once before or after a benchmark.
type Hook func(ctx context.Context) error

// Controller runs benchmarks. The zero value is not usable; use
// NewController.
type Controller struct {
	clock  clock.PassiveClock
	logger log.FieldLogger
}

// NewController returns a controller using the real clock and the standard
// logrus logger.
func NewController() *Controller {
	return &Controller{
		clock:  clock.RealClock{},
		logger: log.StandardLogger(),
	}
}

// WithClock sets the clock used to time samples.
func (c *Controller) WithClock(clk clock.PassiveClock) *Controller {
	c.clock = clk
	return c
}

// WithLogger sets the logger for run progress.
func (c *Controller) WithLogger(logger log.FieldLogger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	c.logger = logger
	return c
}

// Run executes spec with unit: setup once, the warmup invocations, the
// measured invocations and teardown once. Setup and teardown may be nil.
//
// If setup or an invocation fails, or ctx is cancelled between invocations,
// the remaining invocations are skipped and a *PhaseError is returned
// together with the partial result. Teardown runs whenever setup was
// attempted; a teardown failure is logged and joined to the returned error.
func (c *Controller) Run(ctx context.Context, spec Spec, unit Unit, setup, teardown Hook) (*Result, error) {
	if unit == nil {
		return nil, errors.New("nil unit")
	}
	if err := spec.Phases.Validate(); err != nil {
		return nil, fmt.Errorf("benchmark %s: %w", spec.Name, err)
	}

	logger := c.logger.WithFields(log.Fields{
		"benchmark": spec.Name,
		"action":    spec.Action,
	})
	result := &Result{
		Name:    spec.Name,
		Action:  spec.Action,
		Phases:  spec.Phases,
		Dataset: spec.Dataset,
		Samples: make([]Sample, 0, spec.Phases.Measure),
	}

	err := c.run(ctx, logger, spec.Phases, unit, setup, result)

	if teardown != nil {
		if terr := teardown(context.WithoutCancel(ctx)); terr != nil {
			logger.WithError(terr).Warn("Teardown failed")
			err = errors.Join(err, &PhaseError{Phase: PhaseTeardown, Err: terr})
		}
	}

	if err != nil {
		logger.WithError(err).Error("Benchmark aborted")
		return result, err
	}

	logger.WithFields(log.Fields{
		"samples": len(result.Samples),
		"mean":    result.Mean(),
	}).Info("Benchmark complete")
	return result, nil
}

func (c *Controller) run(ctx context.Context, logger log.FieldLogger, phases Phases, unit Unit, setup Hook, result *Result) error {
	if setup != nil {
		logger.Debug("Running setup")
		if err := setup(ctx); err != nil {
			return &PhaseError{Phase: PhaseSetup, Err: err}
		}
	}

	for i := 1; i <= phases.Warmup; i++ {
		if _, err := c.invoke(ctx, unit, PhaseWarmup, i, phases.Iterations); err != nil {
			return err
		}
	}
	logger.Debugf("Warmup complete after %d invocations", phases.Warmup)

	result.Started = c.clock.Now()
	for i := 1; i <= phases.Measure; i++ {
		sample, err := c.invoke(ctx, unit, PhaseMeasure, i, phases.Iterations)
		if err != nil {
			return err
		}
		result.Samples = append(result.Samples, sample)
		logger.Debugf("Sample %d/%d: %v", i, phases.Measure, sample.Duration())
	}
	result.Finished = c.clock.Now()

	return nil
}

func (c *Controller) invoke(ctx context.Context, unit Unit, phase Phase, index, iterations int) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, &PhaseError{
			Phase:      phase,
			Invocation: index,
			Err:        fmt.Errorf("%w: %w", batch.ErrCancelled, err),
		}
	}

	inv := &Invocation{Phase: phase, Index: index, Iterations: iterations}

	start := c.clock.Now()
	err := unit(ctx, inv)
	end := c.clock.Now()

	if err != nil {
		return Sample{}, &PhaseError{Phase: phase, Invocation: index, Err: err}
	}
	return Sample{Start: start, End: end, Failures: inv.Failures()}, nil
}
