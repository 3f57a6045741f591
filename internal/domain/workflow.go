package domain

import "time"

// Mode distinguishes planning from execution. Suggestion mode resolves the
// plan without invoking any action.
type Mode string

const (
	ModeExecution  Mode = "execution"
	ModeSuggestion Mode = "suggestion"
)

// FailurePolicy decides the run outcome when some, but not all, steps fail.
type FailurePolicy string

const (
	// FailurePolicyContinue tolerates partial completion: the run ends
	// PartiallyFailed and independent branches keep executing.
	FailurePolicyContinue FailurePolicy = "continue"
	// FailurePolicyAllOrNothing marks the whole run Failed on any step failure.
	FailurePolicyAllOrNothing FailurePolicy = "all_or_nothing"
)

// Step is one node of a workflow DAG, bound to exactly one action.
type Step struct {
	ID     string                 `json:"step_id"`
	Action string                 `json:"action"`
	// Params may reference earlier steps' outputs with ${step.output.path}
	// placeholders, resolved from the run context before dispatch.
	Params    map[string]interface{} `json:"params,omitempty"`
	DependsOn []string               `json:"depends_on,omitempty"`

	// MaxAttempts overrides the engine default when > 0.
	MaxAttempts int `json:"max_attempts,omitempty"`
	// Timeout overrides the engine's per-step timeout when > 0.
	Timeout time.Duration `json:"timeout,omitempty"`
	// SaveTo publishes the step output as a resource reference under the
	// given logical key, retrievable by later steps and later runs.
	SaveTo string `json:"save_to,omitempty"`
	// CacheResult reuses a warm-tier cached result for identical
	// action+params invocations when available.
	CacheResult bool `json:"cache_result,omitempty"`
}

// Definition is a DAG of steps to execute. The dependency graph must be
// acyclic and every DependsOn reference must name a step in the same
// definition.
type Definition struct {
	ID        string        `json:"workflow_id"`
	Name      string        `json:"name,omitempty"`
	Steps     []Step        `json:"steps"`
	OnFailure FailurePolicy `json:"on_failure,omitempty"`
}

// Policy returns the effective failure policy, defaulting to continue.
func (d *Definition) Policy() FailurePolicy {
	if d.OnFailure == FailurePolicyAllOrNothing {
		return FailurePolicyAllOrNothing
	}
	return FailurePolicyContinue
}

// Sequential builds a definition from a flat action list: absence of
// explicit dependencies means run in declaration order, so each step
// depends on the previous one.
func Sequential(id, name string, steps []Step) *Definition {
	chained := make([]Step, len(steps))
	copy(chained, steps)
	for i := range chained {
		if i > 0 && len(chained[i].DependsOn) == 0 {
			chained[i].DependsOn = []string{chained[i-1].ID}
		}
	}
	return &Definition{ID: id, Name: name, Steps: chained}
}

// Clone returns a deep copy of the definition so template expansions never
// share mutable state with the registered original.
func (d *Definition) Clone() *Definition {
	out := &Definition{ID: d.ID, Name: d.Name, OnFailure: d.OnFailure}
	out.Steps = make([]Step, len(d.Steps))
	for i, s := range d.Steps {
		cs := s
		cs.Params = deepCopyMap(s.Params)
		cs.DependsOn = append([]string(nil), s.DependsOn...)
		out.Steps[i] = cs
	}
	return out
}

// Plan is the resolved but unexecuted form of a workflow, returned in
// suggestion mode. Levels groups step IDs by execution wave: steps within a
// level are independent and would run concurrently.
type Plan struct {
	WorkflowID string     `json:"workflow_id"`
	Name       string     `json:"name,omitempty"`
	Steps      []Step     `json:"steps"`
	Levels     [][]string `json:"levels"`
}

func deepCopyMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
