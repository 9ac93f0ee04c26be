package operations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepState_Lifecycle(t *testing.T) {
	step := NewStepState(StepDedup, "Resolve duplicates")
	assert.Equal(t, StepStatusPending, step.GetStatus())
	assert.Equal(t, int64(0), step.Duration().Nanoseconds())

	step.Start()
	assert.Equal(t, StepStatusActive, step.GetStatus())
	require.NotNil(t, step.StartTime)

	step.Complete("42 retained")
	assert.Equal(t, StepStatusCompleted, step.GetStatus())
	assert.Equal(t, "42 retained", step.Message)
	assert.GreaterOrEqual(t, step.Duration().Nanoseconds(), int64(0))
}

func TestStepState_Fail(t *testing.T) {
	step := NewStepState(StepModels, "Fit models")
	step.Start()

	cause := errors.New("boom")
	step.Fail(cause)

	assert.Equal(t, StepStatusFailed, step.GetStatus())
	assert.Equal(t, cause, step.Err)
	assert.Equal(t, "boom", step.Message)
}

func TestRunState_Lifecycle(t *testing.T) {
	run := NewRunState("run-1")
	assert.Equal(t, RunStatusPending, run.GetStatus())

	run.Start()
	assert.Equal(t, RunStatusRunning, run.GetStatus())

	run.AddStep(NewStepState(StepNormalize, "Normalize units"))
	run.AddStep(NewStepState(StepDedup, "Resolve duplicates"))
	assert.Len(t, run.Steps, 2)

	run.Complete()
	assert.Equal(t, RunStatusCompleted, run.GetStatus())
	require.NotNil(t, run.EndTime)
}

func TestRunState_Fail(t *testing.T) {
	run := NewRunState("run-2")
	run.Start()
	run.Fail(errors.New("step normalize: context canceled"))

	assert.Equal(t, RunStatusFailed, run.GetStatus())
	assert.Error(t, run.Err)
}
