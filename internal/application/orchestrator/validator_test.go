package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elitedynamics/stepflow/internal/domain"
)

func TestValidateAcceptsValidDefinition(t *testing.T) {
	v := NewValidator(newFakeInvoker())

	def := &domain.Definition{
		ID: "wf",
		Steps: []domain.Step{
			{ID: "a", Action: "svc.a"},
			{ID: "b", Action: "svc.b", DependsOn: []string{"a"}},
		},
	}

	assert.NoError(t, v.Validate(def))
}

func TestValidateRejectsEmptyWorkflow(t *testing.T) {
	v := NewValidator(newFakeInvoker())

	err := v.Validate(&domain.Definition{ID: "wf"})
	assert.ErrorIs(t, err, domain.ErrEmptyWorkflow)
}

func TestValidateRejectsDuplicateStepIDs(t *testing.T) {
	v := NewValidator(newFakeInvoker())

	err := v.Validate(&domain.Definition{
		ID: "wf",
		Steps: []domain.Step{
			{ID: "a", Action: "svc.a"},
			{ID: "a", Action: "svc.b"},
		},
	})
	assert.ErrorContains(t, err, "duplicate step ID")
}

func TestValidateRejectsUnknownAction(t *testing.T) {
	v := NewValidator(&resolveFailInvoker{})

	err := v.Validate(&domain.Definition{
		ID:    "wf",
		Steps: []domain.Step{{ID: "a", Action: "svc.missing"}},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestValidateRejectsMissingDependency(t *testing.T) {
	v := NewValidator(newFakeInvoker())

	err := v.Validate(&domain.Definition{
		ID: "wf",
		Steps: []domain.Step{
			{ID: "a", Action: "svc.a", DependsOn: []string{"ghost"}},
		},
	})
	assert.ErrorContains(t, err, "non-existent dependency")
}

func TestValidateRejectsSelfDependency(t *testing.T) {
	v := NewValidator(newFakeInvoker())

	err := v.Validate(&domain.Definition{
		ID: "wf",
		Steps: []domain.Step{
			{ID: "a", Action: "svc.a", DependsOn: []string{"a"}},
		},
	})
	assert.ErrorContains(t, err, "depends on itself")
}

func TestValidateRejectsCycle(t *testing.T) {
	v := NewValidator(newFakeInvoker())

	err := v.Validate(&domain.Definition{
		ID: "wf",
		Steps: []domain.Step{
			{ID: "a", Action: "svc.a", DependsOn: []string{"c"}},
			{ID: "b", Action: "svc.b", DependsOn: []string{"a"}},
			{ID: "c", Action: "svc.c", DependsOn: []string{"b"}},
		},
	})
	assert.ErrorIs(t, err, domain.ErrCyclicWorkflow)
}

func TestLevelsGroupsIndependentSteps(t *testing.T) {
	v := NewValidator(newFakeInvoker())

	def := &domain.Definition{
		ID: "wf",
		Steps: []domain.Step{
			{ID: "a", Action: "svc.a"},
			{ID: "b", Action: "svc.b"},
			{ID: "c", Action: "svc.c", DependsOn: []string{"a", "b"}},
		},
	}

	levels, err := v.Levels(def)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, []string{"a", "b"}, levels[0])
	assert.Equal(t, []string{"c"}, levels[1])
}

// resolveFailInvoker fails Resolve for every action.
type resolveFailInvoker struct {
	fakeInvoker
}

func (r *resolveFailInvoker) Resolve(name string) (domain.ActionSpec, error) {
	return domain.ActionSpec{}, domain.ErrUnknownAction
}
