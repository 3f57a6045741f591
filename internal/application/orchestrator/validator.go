package orchestrator

import (
	"fmt"

	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

// Validator validates workflow definitions before execution
type Validator struct {
	invoker ports.ActionInvoker
}

// NewValidator creates a new workflow validator
func NewValidator(invoker ports.ActionInvoker) *Validator {
	return &Validator{invoker: invoker}
}

// Validate checks a definition: non-empty, unique step IDs, resolvable
// dependency references, registered actions, and an acyclic graph. It runs
// before any step executes, so every violation fails fast.
func (v *Validator) Validate(def *domain.Definition) error {
	if def == nil {
		return fmt.Errorf("workflow definition is nil")
	}
	if def.ID == "" {
		return fmt.Errorf("workflow ID is required")
	}
	if len(def.Steps) == 0 {
		return domain.ErrEmptyWorkflow
	}

	stepIDs := make(map[string]bool, len(def.Steps))
	for _, step := range def.Steps {
		if step.ID == "" {
			return fmt.Errorf("step ID is required")
		}
		if step.Action == "" {
			return fmt.Errorf("step %s: action is required", step.ID)
		}
		if stepIDs[step.ID] {
			return fmt.Errorf("duplicate step ID: %s", step.ID)
		}
		stepIDs[step.ID] = true

		if _, err := v.invoker.Resolve(step.Action); err != nil {
			return fmt.Errorf("step %s: %w", step.ID, err)
		}
	}

	for _, step := range def.Steps {
		for _, dep := range step.DependsOn {
			if !stepIDs[dep] {
				return fmt.Errorf("step %s references non-existent dependency: %s", step.ID, dep)
			}
			if dep == step.ID {
				return fmt.Errorf("step %s depends on itself", step.ID)
			}
		}
	}

	if _, err := v.Levels(def); err != nil {
		return err
	}
	return nil
}

// Levels computes the topological layering of the definition: steps in one
// level have all dependencies in earlier levels and would execute
// concurrently. Fails with domain.ErrCyclicWorkflow if the graph has a
// cycle.
func (v *Validator) Levels(def *domain.Definition) ([][]string, error) {
	indegree := make(map[string]int, len(def.Steps))
	dependents := make(map[string][]string, len(def.Steps))
	for _, step := range def.Steps {
		indegree[step.ID] = len(step.DependsOn)
		for _, dep := range step.DependsOn {
			dependents[dep] = append(dependents[dep], step.ID)
		}
	}

	// Kahn's algorithm, peeled one level at a time. Definition order is
	// preserved within a level so plans are deterministic.
	var levels [][]string
	processed := 0
	for processed < len(def.Steps) {
		var level []string
		for _, step := range def.Steps {
			if indegree[step.ID] == 0 {
				level = append(level, step.ID)
			}
		}
		if len(level) == 0 {
			return nil, domain.ErrCyclicWorkflow
		}
		for _, id := range level {
			indegree[id] = -1 // consumed
			for _, dep := range dependents[id] {
				indegree[dep]--
			}
			processed++
		}
		levels = append(levels, level)
	}
	return levels, nil
}
