package bench_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/MasterOfBinary/bulkbench/batch"
	"github.com/MasterOfBinary/bulkbench/bench"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newController(t *testing.T) (*bench.Controller, *testingclock.FakeClock, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	clk := testingclock.NewFakeClock(epoch)
	return bench.NewController().WithClock(clk).WithLogger(logger), clk, hook
}

func testSpec(warmup, measure, iterations int) bench.Spec {
	return bench.Spec{
		Name:   "test",
		Action: "test",
		Phases: bench.Phases{Warmup: warmup, Measure: measure, Iterations: iterations},
	}
}

func TestController_Run(t *testing.T) {
	ctrl, clk, _ := newController(t)

	var calls int
	var iterations []int
	unit := func(_ context.Context, inv *bench.Invocation) error {
		calls++
		iterations = append(iterations, inv.Iterations)
		clk.Step(time.Duration(calls) * time.Millisecond)
		return nil
	}

	result, err := ctrl.Run(context.Background(), testSpec(1, 5, 3), unit, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, calls)
	assert.Equal(t, []int{3, 3, 3, 3, 3, 3}, iterations)
	require.Len(t, result.Samples, 5)

	// The warmup invocation took 1ms and is not measured.
	want := []time.Duration{2 * time.Millisecond, 3 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond, 6 * time.Millisecond}
	assert.Equal(t, want, result.Durations())
	assert.Equal(t, epoch.Add(time.Millisecond), result.Started)
	assert.Equal(t, epoch.Add(21*time.Millisecond), result.Finished)
	assert.Equal(t, 4*time.Millisecond, result.Mean())
}

func TestController_PhaseOrder(t *testing.T) {
	ctrl, _, _ := newController(t)

	var events []string
	record := func(name string) bench.Hook {
		return func(context.Context) error {
			events = append(events, name)
			return nil
		}
	}
	unit := func(_ context.Context, inv *bench.Invocation) error {
		events = append(events, fmt.Sprintf("%s-%d", inv.Phase, inv.Index))
		return nil
	}

	_, err := ctrl.Run(context.Background(), testSpec(2, 2, 1), unit, record("setup"), record("teardown"))
	require.NoError(t, err)
	assert.Equal(t, []string{"setup", "warmup-1", "warmup-2", "measure-1", "measure-2", "teardown"}, events)
}

func TestController_SetupFailure(t *testing.T) {
	ctrl, _, _ := newController(t)

	boom := errors.New("cluster unreachable")
	var calls int
	var tornDown bool

	result, err := ctrl.Run(context.Background(), testSpec(1, 1, 1),
		func(context.Context, *bench.Invocation) error { calls++; return nil },
		func(context.Context) error { return boom },
		func(context.Context) error { tornDown = true; return nil },
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, bench.ErrPhaseAborted)
	assert.ErrorIs(t, err, boom)

	var pe *bench.PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, bench.PhaseSetup, pe.Phase)
	assert.Equal(t, "setup failed: cluster unreachable", pe.Error())

	assert.Zero(t, calls)
	assert.True(t, tornDown)
	require.NotNil(t, result)
	assert.Empty(t, result.Samples)
}

func TestController_InvocationFailure(t *testing.T) {
	ctrl, _, _ := newController(t)

	boom := errors.New("bulk rejected")
	var tornDown bool
	unit := func(_ context.Context, inv *bench.Invocation) error {
		if inv.Phase == bench.PhaseMeasure && inv.Index == 3 {
			return boom
		}
		return nil
	}

	result, err := ctrl.Run(context.Background(), testSpec(1, 5, 1), unit, nil,
		func(context.Context) error { tornDown = true; return nil })

	var pe *bench.PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, bench.PhaseMeasure, pe.Phase)
	assert.Equal(t, 3, pe.Invocation)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "measure invocation 3 failed: bulk rejected", pe.Error())

	assert.True(t, tornDown)
	assert.Len(t, result.Samples, 2)
	assert.True(t, result.Finished.IsZero())
}

func TestController_TeardownFailure(t *testing.T) {
	ctrl, _, hook := newController(t)

	boom := errors.New("delete failed")
	result, err := ctrl.Run(context.Background(), testSpec(0, 2, 1),
		func(context.Context, *bench.Invocation) error { return nil },
		nil,
		func(context.Context) error { return boom },
	)

	assert.ErrorIs(t, err, bench.ErrPhaseAborted)
	assert.ErrorIs(t, err, boom)
	var pe *bench.PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, bench.PhaseTeardown, pe.Phase)
	assert.Len(t, result.Samples, 2)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Teardown failed" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestController_FailureAndTeardownFailure(t *testing.T) {
	ctrl, _, _ := newController(t)

	unitErr := errors.New("unit")
	teardownErr := errors.New("teardown")
	_, err := ctrl.Run(context.Background(), testSpec(0, 1, 1),
		func(context.Context, *bench.Invocation) error { return unitErr },
		nil,
		func(context.Context) error { return teardownErr },
	)

	assert.ErrorIs(t, err, unitErr)
	assert.ErrorIs(t, err, teardownErr)
}

func TestController_Cancelled(t *testing.T) {
	ctrl, _, _ := newController(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	var teardownCtxErr error
	unit := func(_ context.Context, inv *bench.Invocation) error {
		calls++
		if inv.Phase == bench.PhaseMeasure && inv.Index == 2 {
			cancel()
		}
		return nil
	}

	result, err := ctrl.Run(ctx, testSpec(1, 5, 1), unit, nil, func(ctx context.Context) error {
		teardownCtxErr = ctx.Err()
		return nil
	})

	assert.ErrorIs(t, err, batch.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	var pe *bench.PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, bench.PhaseMeasure, pe.Phase)
	assert.Equal(t, 3, pe.Invocation)

	assert.Equal(t, 3, calls)
	assert.Len(t, result.Samples, 2)
	assert.NoError(t, teardownCtxErr, "teardown runs with an uncancelled context")
}

func TestController_Failures(t *testing.T) {
	ctrl, _, _ := newController(t)

	unit := func(_ context.Context, inv *bench.Invocation) error {
		inv.AddFailures(int64(inv.Index))
		return nil
	}

	result, err := ctrl.Run(context.Background(), testSpec(1, 3, 1), unit, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.Failures())
	assert.Equal(t, int64(3), result.Samples[2].Failures)
}

func TestController_InvalidInput(t *testing.T) {
	ctrl, _, _ := newController(t)
	unit := func(context.Context, *bench.Invocation) error { return nil }

	tests := []struct {
		name   string
		phases bench.Phases
	}{
		{"negative warmup", bench.Phases{Warmup: -1, Measure: 1, Iterations: 1}},
		{"no measure", bench.Phases{Measure: 0, Iterations: 1}},
		{"no iterations", bench.Phases{Measure: 1, Iterations: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ctrl.Run(context.Background(), bench.Spec{Name: "x", Phases: tt.phases}, unit, nil, nil)
			assert.Error(t, err)
			assert.Nil(t, result)
		})
	}

	_, err := ctrl.Run(context.Background(), testSpec(0, 1, 1), nil, nil, nil)
	assert.Error(t, err)
}
