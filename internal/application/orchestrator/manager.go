package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/application/state"
	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

// SubmitRequest describes one workflow submission. Either Workflow names a
// registered template, or Steps carries an ad-hoc definition; exactly one
// must be set.
type SubmitRequest struct {
	Workflow  string                 `json:"workflow,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Steps     []domain.Step          `json:"steps,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Mode      domain.Mode            `json:"mode,omitempty"`
	OnFailure domain.FailurePolicy   `json:"on_failure,omitempty"`
}

// SubmitResult is the synchronous response to a submission: a run handle in
// execution mode, a fully resolved plan in suggestion mode.
type SubmitResult struct {
	RunID string       `json:"run_id,omitempty"`
	Mode  domain.Mode  `json:"mode"`
	Plan  *domain.Plan `json:"plan,omitempty"`
}

// runHandle tracks one live run so it can be cancelled and awaited.
type runHandle struct {
	cancelCh  chan struct{}
	done      chan struct{}
	cancelled bool
}

// Manager is the orchestration front door: it turns submissions into
// validated definitions, owns the live-run table and delegates execution to
// the engine.
type Manager struct {
	engine    *Engine
	validator *Validator
	templates *Templates
	store     *state.Store
	metrics   ports.MetricsCollector
	logger    *zap.Logger
	runTTL    time.Duration

	mu   sync.Mutex
	runs map[string]*runHandle
	wg   sync.WaitGroup
}

// NewManager wires the orchestration surface together. runTTL bounds wall
// clock time for a whole run; zero disables the bound.
func NewManager(
	engine *Engine,
	validator *Validator,
	templates *Templates,
	store *state.Store,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	runTTL time.Duration,
) *Manager {
	return &Manager{
		engine:    engine,
		validator: validator,
		templates: templates,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		runTTL:    runTTL,
		runs:      make(map[string]*runHandle),
	}
}

// Templates exposes the template catalog, for listing endpoints.
func (m *Manager) Templates() *Templates {
	return m.templates
}

// Submit validates a request and either returns the execution plan
// (suggestion mode) or starts the run asynchronously (execution mode).
// Submission is synchronous only up to validation: a valid execution-mode
// request returns a run ID immediately while steps execute in the
// background.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	def, err := m.buildDefinition(req)
	if err != nil {
		return nil, err
	}
	if err := m.validator.Validate(def); err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeExecution
	}

	if mode == domain.ModeSuggestion {
		levels, err := m.validator.Levels(def)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{
			Mode: domain.ModeSuggestion,
			Plan: &domain.Plan{
				WorkflowID: def.ID,
				Name:       def.Name,
				Steps:      def.Steps,
				Levels:     levels,
			},
		}, nil
	}

	runID := uuid.New().String()
	run := domain.NewRun(runID, def)
	if len(req.Params) > 0 {
		run.Context["params"] = req.Params
	}
	if err := m.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("persisting new run: %w", err)
	}

	handle := &runHandle{
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.mu.Lock()
	m.runs[runID] = handle
	m.metrics.SetActiveRuns(len(m.runs))
	m.mu.Unlock()

	m.metrics.RecordRunSubmitted(def.ID)
	m.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("workflow_id", def.ID),
		zap.Int("steps", len(def.Steps)))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(handle.done)

		execCtx := context.Background()
		var cancel context.CancelFunc
		if m.runTTL > 0 {
			execCtx, cancel = context.WithTimeout(execCtx, m.runTTL)
			defer cancel()
		}
		m.engine.Execute(execCtx, def, run, handle.cancelCh)

		m.mu.Lock()
		delete(m.runs, runID)
		m.metrics.SetActiveRuns(len(m.runs))
		m.mu.Unlock()
	}()

	return &SubmitResult{RunID: runID, Mode: domain.ModeExecution}, nil
}

// buildDefinition turns a submission into a definition: template expansion
// when Workflow is set, otherwise an ad-hoc definition from Steps. A flat
// step list without explicit dependencies runs sequentially in declaration
// order.
func (m *Manager) buildDefinition(req SubmitRequest) (*domain.Definition, error) {
	if req.Workflow != "" && len(req.Steps) > 0 {
		return nil, fmt.Errorf("%w: workflow and steps are mutually exclusive", domain.ErrInvalidWorkflow)
	}

	if req.Workflow != "" {
		def, err := m.templates.Expand(req.Workflow)
		if err != nil {
			return nil, err
		}
		if req.OnFailure != "" {
			def.OnFailure = req.OnFailure
		}
		if req.Name != "" {
			def.Name = req.Name
		}
		return def, nil
	}

	if len(req.Steps) == 0 {
		return nil, domain.ErrEmptyWorkflow
	}

	id := "adhoc-" + uuid.New().String()[:8]
	anyDeps := false
	for _, s := range req.Steps {
		if len(s.DependsOn) > 0 {
			anyDeps = true
			break
		}
	}
	var def *domain.Definition
	if anyDeps {
		def = &domain.Definition{ID: id, Name: req.Name, Steps: req.Steps}
	} else {
		def = domain.Sequential(id, req.Name, req.Steps)
	}
	def.OnFailure = req.OnFailure
	return def, nil
}

// RunStatus returns a consistent snapshot of a run. Repeated calls on a
// terminal run return identical results.
func (m *Manager) RunStatus(ctx context.Context, runID string) (*domain.Run, error) {
	return m.store.LoadRun(ctx, runID)
}

// ListRuns returns snapshots of every retained run.
func (m *Manager) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	return m.store.ListRuns(ctx)
}

// Cancel requests cooperative cancellation of a live run. In-flight steps
// finish; nothing new is dispatched. Cancelling an already-terminal run is
// an error.
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	m.mu.Lock()
	handle, ok := m.runs[runID]
	if ok && !handle.cancelled {
		handle.cancelled = true
		close(handle.cancelCh)
	}
	m.mu.Unlock()
	if ok {
		m.logger.Info("run cancellation requested", zap.String("run_id", runID))
		return nil
	}

	run, err := m.store.LoadRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return fmt.Errorf("%w: run %s is %s", domain.ErrRunTerminal, runID, run.Status)
	}
	// Known to the store but not to the live table: the process restarted
	// underneath the run. Nothing is executing, settle it as cancelled.
	run.Status = domain.RunStatusCancelled
	now := time.Now()
	run.CompletedAt = &now
	return m.store.SaveRun(ctx, run)
}

// Shutdown cancels every live run and waits for their coordinators to
// settle, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for runID, handle := range m.runs {
		if !handle.cancelled {
			handle.cancelled = true
			close(handle.cancelCh)
		}
		m.logger.Info("cancelling run for shutdown", zap.String("run_id", runID))
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
