package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialChainsStepsWithoutDeps(t *testing.T) {
	def := Sequential("wf", "flow", []Step{
		{ID: "a", Action: "svc.a"},
		{ID: "b", Action: "svc.b"},
		{ID: "c", Action: "svc.c", DependsOn: []string{"a"}},
	})

	assert.Empty(t, def.Steps[0].DependsOn)
	assert.Equal(t, []string{"a"}, def.Steps[1].DependsOn)
	// Explicit dependencies are left alone.
	assert.Equal(t, []string{"a"}, def.Steps[2].DependsOn)
}

func TestDefinitionCloneIsDeep(t *testing.T) {
	def := &Definition{
		ID: "wf",
		Steps: []Step{
			{ID: "a", Action: "svc.a", Params: map[string]interface{}{
				"nested": map[string]interface{}{"k": "v"},
			}},
		},
	}

	clone := def.Clone()
	clone.Steps[0].Params["nested"].(map[string]interface{})["k"] = "changed"

	assert.Equal(t, "v", def.Steps[0].Params["nested"].(map[string]interface{})["k"])
}

func TestRunCloneIsolatesSteps(t *testing.T) {
	def := &Definition{ID: "wf", Steps: []Step{{ID: "a", Action: "svc.a"}}}
	run := NewRun("run-1", def)

	clone := run.Clone()
	clone.Steps["a"].Status = StepStatusFailed
	clone.Context["extra"] = true

	assert.Equal(t, StepStatusWaiting, run.Steps["a"].Status)
	assert.NotContains(t, run.Context, "extra")
}

func TestPolicyDefaultsToContinue(t *testing.T) {
	def := &Definition{ID: "wf"}
	assert.Equal(t, FailurePolicyContinue, def.Policy())

	def.OnFailure = FailurePolicyAllOrNothing
	assert.Equal(t, FailurePolicyAllOrNothing, def.Policy())
}

func TestRunStatusTerminal(t *testing.T) {
	terminal := []RunStatus{RunStatusCompleted, RunStatusPartiallyFailed, RunStatusFailed, RunStatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), string(s))
	}
	assert.False(t, RunStatusPending.Terminal())
	assert.False(t, RunStatusRunning.Terminal())
}

func TestKindRetryableDefaults(t *testing.T) {
	retryable := []ErrorKind{ErrKindUnauthorized, ErrKindRateLimited, ErrKindUpstreamUnavailable, ErrKindTimeout}
	for _, k := range retryable {
		assert.True(t, KindRetryable(k), string(k))
	}
	assert.False(t, KindRetryable(ErrKindInvalidInput))
	assert.False(t, KindRetryable(ErrKindUnknown))
}

func TestAsActionErrorPassesThrough(t *testing.T) {
	original := NewActionError(ErrKindRateLimited, "slow down")
	require.Same(t, original, AsActionError(original))

	wrapped := AsActionError(assert.AnError)
	assert.Equal(t, ErrKindUnknown, wrapped.Kind)
	assert.False(t, wrapped.Retryable)
}
