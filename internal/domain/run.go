package domain

import "time"

// RunStatus is the lifecycle state of a workflow run. Transitions are
// monotonic forward: a terminal run is never mutated again.
type RunStatus string

const (
	RunStatusPending         RunStatus = "pending"
	RunStatusRunning         RunStatus = "running"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusPartiallyFailed RunStatus = "partially_failed"
	RunStatusFailed          RunStatus = "failed"
	RunStatusCancelled       RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartiallyFailed, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// StepStatus is the lifecycle state of a single step within a run.
type StepStatus string

const (
	StepStatusWaiting   StepStatus = "waiting"
	StepStatusReady     StepStatus = "ready"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Terminal reports whether the step reached a final state.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepStatusSucceeded, StepStatusFailed, StepStatusSkipped:
		return true
	}
	return false
}

// StepState tracks one step's progress inside a run.
type StepState struct {
	StepID      string      `json:"step_id"`
	Action      string      `json:"action"`
	Status      StepStatus  `json:"status"`
	Attempts    int         `json:"attempts"`
	Output      interface{} `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorKind   ErrorKind   `json:"error_kind,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// StepFailure is one entry of a run's error breakdown, detailed enough for
// a caller to resubmit just the failed branch.
type StepFailure struct {
	StepID    string    `json:"step_id"`
	Action    string    `json:"action"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// Run is one execution instance of a workflow definition.
type Run struct {
	RunID      string                 `json:"run_id"`
	WorkflowID string                 `json:"workflow_id"`
	Name       string                 `json:"name,omitempty"`
	Status     RunStatus              `json:"status"`
	Steps      map[string]*StepState  `json:"steps"`
	// Context accumulates step outputs keyed by step ID, available to
	// downstream steps through parameter templates. Writes are merge-only
	// per step key, so concurrently completing steps never clobber each
	// other.
	Context     map[string]interface{} `json:"context"`
	Failures    []StepFailure          `json:"failures,omitempty"`
	SubmittedAt time.Time              `json:"submitted_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// NewRun creates a pending run for a definition with every step Waiting.
func NewRun(runID string, def *Definition) *Run {
	r := &Run{
		RunID:       runID,
		WorkflowID:  def.ID,
		Name:        def.Name,
		Status:      RunStatusPending,
		Steps:       make(map[string]*StepState, len(def.Steps)),
		Context:     make(map[string]interface{}),
		SubmittedAt: time.Now(),
	}
	for _, s := range def.Steps {
		r.Steps[s.ID] = &StepState{StepID: s.ID, Action: s.Action, Status: StepStatusWaiting}
	}
	return r
}

// Clone returns a deep copy. Status queries always hand out clones so a
// caller never observes partially-written state.
func (r *Run) Clone() *Run {
	out := *r
	out.Steps = make(map[string]*StepState, len(r.Steps))
	for id, st := range r.Steps {
		cp := *st
		out.Steps[id] = &cp
	}
	out.Context = deepCopyMap(r.Context)
	out.Failures = append([]StepFailure(nil), r.Failures...)
	return &out
}
