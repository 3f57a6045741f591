package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/application/state"
	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

// EngineConfig holds execution policy defaults. Steps may override
// MaxAttempts and StepTimeout individually.
type EngineConfig struct {
	MaxInFlight  int
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration
	StepTimeout  time.Duration
}

// Engine executes one workflow definition to completion: topological
// dispatch with bounded concurrency, parameter substitution, retry with
// exponential backoff, skip propagation and cooperative cancellation.
type Engine struct {
	invoker ports.ActionInvoker
	store   *state.Store
	bus     ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger
	cfg     EngineConfig
}

// NewEngine creates an execution engine.
func NewEngine(
	invoker ports.ActionInvoker,
	store *state.Store,
	bus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	cfg EngineConfig,
) *Engine {
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Engine{
		invoker: invoker,
		store:   store,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// stepResult carries one step's outcome back to the coordinator loop.
type stepResult struct {
	stepID   string
	output   interface{}
	attempts int
	err      *domain.ActionError
}

// Execute runs a validated definition. All mutations of the run happen on
// the coordinator goroutine, one transition at a time, so concurrently
// completing steps never produce lost updates. The run is persisted after
// every transition and the final run state is returned.
func (e *Engine) Execute(ctx context.Context, def *domain.Definition, run *domain.Run, cancelCh <-chan struct{}) *domain.Run {
	steps := make(map[string]domain.Step, len(def.Steps))
	for _, s := range def.Steps {
		steps[s.ID] = s
	}

	now := time.Now()
	run.Status = domain.RunStatusRunning
	run.StartedAt = &now
	e.persist(ctx, run)
	e.emit(ctx, domain.EventWorkflowStarted, run, "", map[string]interface{}{
		"workflow_id": run.WorkflowID,
		"total_steps": len(def.Steps),
	})

	results := make(chan stepResult)
	inFlight := 0
	cancelled := false
	timedOut := false

	for {
		if !cancelled {
			select {
			case <-cancelCh:
				cancelled = true
				e.logger.Info("cancel requested, no new steps will be dispatched",
					zap.String("run_id", run.RunID))
			case <-ctx.Done():
				cancelled = true
				timedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
				e.logger.Warn("run context done, no new steps will be dispatched",
					zap.String("run_id", run.RunID),
					zap.Error(ctx.Err()))
			default:
			}
		}

		if !cancelled {
			e.propagateSkips(ctx, def, run)
			for _, step := range e.readySteps(def, run) {
				if inFlight >= e.cfg.MaxInFlight {
					break
				}
				e.dispatch(ctx, steps[step], run, results)
				inFlight++
			}
		}

		if inFlight == 0 {
			break
		}

		// Block until a step completes. Cancellation is re-checked on the
		// next pass; in-flight external calls are never forcibly aborted.
		res := <-results
		inFlight--
		e.apply(ctx, steps[res.stepID], run, res)
	}

	e.finalize(ctx, run, def.Policy(), cancelled, timedOut)
	return run
}

// readySteps returns dispatchable steps in definition order: Waiting steps
// whose dependencies have all Succeeded are promoted to Ready here, and
// steps still Ready from an earlier pass (held back by the in-flight cap)
// are returned again so they are never starved.
func (e *Engine) readySteps(def *domain.Definition, run *domain.Run) []string {
	var ready []string
	for _, step := range def.Steps {
		st := run.Steps[step.ID]
		switch st.Status {
		case domain.StepStatusReady:
			ready = append(ready, step.ID)
			continue
		case domain.StepStatusWaiting:
		default:
			continue
		}
		ok := true
		for _, dep := range step.DependsOn {
			if run.Steps[dep].Status != domain.StepStatusSucceeded {
				ok = false
				break
			}
		}
		if ok {
			st.Status = domain.StepStatusReady
			ready = append(ready, step.ID)
		}
	}
	return ready
}

// propagateSkips marks every step transitively dependent on a failed or
// skipped step as Skipped: a required input is missing, so it never runs.
func (e *Engine) propagateSkips(ctx context.Context, def *domain.Definition, run *domain.Run) {
	changed := true
	for changed {
		changed = false
		for _, step := range def.Steps {
			st := run.Steps[step.ID]
			if st.Status != domain.StepStatusWaiting {
				continue
			}
			for _, dep := range step.DependsOn {
				depStatus := run.Steps[dep].Status
				if depStatus == domain.StepStatusFailed || depStatus == domain.StepStatusSkipped {
					st.Status = domain.StepStatusSkipped
					changed = true
					e.logger.Info("step skipped, dependency did not succeed",
						zap.String("run_id", run.RunID),
						zap.String("step_id", step.ID),
						zap.String("dependency", dep))
					e.persist(ctx, run)
					break
				}
			}
		}
	}
}

// dispatch resolves the step's parameter template against the run context
// and launches execution. A template that references a missing value fails
// the step immediately, without dispatching.
func (e *Engine) dispatch(ctx context.Context, step domain.Step, run *domain.Run, results chan<- stepResult) {
	st := run.Steps[step.ID]
	now := time.Now()
	st.Status = domain.StepStatusRunning
	st.StartedAt = &now
	e.persist(ctx, run)
	e.emit(ctx, domain.EventStepStarted, run, step.ID, map[string]interface{}{
		"action": step.Action,
	})

	params, err := resolveParams(step.Params, run.Context)
	if err != nil {
		go func() {
			results <- stepResult{
				stepID:   step.ID,
				attempts: 0,
				err: &domain.ActionError{
					Kind:      domain.ErrKindInvalidInput,
					Message:   err.Error(),
					Retryable: false,
				},
			}
		}()
		return
	}

	go e.runStep(ctx, step, params, results)
}

// runStep invokes the action with per-attempt timeout and retry-with-backoff.
func (e *Engine) runStep(ctx context.Context, step domain.Step, params map[string]interface{}, results chan<- stepResult) {
	if step.CacheResult {
		if cached, ok, err := e.store.GetCachedResult(ctx, step.Action, params); err == nil && ok {
			e.logger.Debug("using cached action result",
				zap.String("step_id", step.ID),
				zap.String("action", step.Action))
			results <- stepResult{stepID: step.ID, output: cached, attempts: 0}
			return
		}
	}

	maxAttempts := e.cfg.MaxAttempts
	if step.MaxAttempts > 0 {
		maxAttempts = step.MaxAttempts
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.RetryInitial
	bo.MaxInterval = e.cfg.RetryMax
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	attempts := 0
	for {
		attempts++
		output, err := e.invokeOnce(ctx, step, params)
		if err == nil {
			if step.CacheResult {
				if cacheErr := e.store.CacheActionResult(ctx, step.Action, params, output, time.Hour); cacheErr != nil {
					e.logger.Warn("failed to cache action result",
						zap.String("action", step.Action),
						zap.Error(cacheErr))
				}
			}
			results <- stepResult{stepID: step.ID, output: output, attempts: attempts}
			return
		}

		ae := toActionError(err)
		if !ae.Retryable || attempts >= maxAttempts {
			results <- stepResult{stepID: step.ID, attempts: attempts, err: ae}
			return
		}

		e.metrics.RecordStepRetried(step.Action)
		wait := bo.NextBackOff()
		e.logger.Warn("step attempt failed, retrying",
			zap.String("step_id", step.ID),
			zap.String("action", step.Action),
			zap.String("kind", string(ae.Kind)),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			results <- stepResult{stepID: step.ID, attempts: attempts, err: ae}
			return
		}
	}
}

// invokeOnce performs a single attempt under the step's timeout. A timeout
// is a retryable failure; the underlying call is left to finish on its own,
// its result discarded.
func (e *Engine) invokeOnce(ctx context.Context, step domain.Step, params map[string]interface{}) (interface{}, error) {
	timeout := e.cfg.StepTimeout
	if step.Timeout > 0 {
		timeout = step.Timeout
	}
	attemptCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type invocation struct {
		output interface{}
		err    error
	}
	done := make(chan invocation, 1)
	go func() {
		output, err := e.invoker.Invoke(attemptCtx, step.Action, params)
		done <- invocation{output: output, err: err}
	}()

	select {
	case inv := <-done:
		return inv.output, inv.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &domain.ActionError{
				Kind:      domain.ErrKindTimeout,
				Message:   "step timed out after " + timeout.String(),
				Retryable: true,
			}
		}
		return nil, &domain.ActionError{
			Kind:      domain.ErrKindUnknown,
			Message:   "run context cancelled during step execution",
			Retryable: false,
		}
	}
}

// apply records a step outcome. Runs on the coordinator goroutine only.
func (e *Engine) apply(ctx context.Context, step domain.Step, run *domain.Run, res stepResult) {
	st := run.Steps[res.stepID]
	now := time.Now()
	st.CompletedAt = &now
	st.Attempts = res.attempts

	var duration time.Duration
	if st.StartedAt != nil {
		duration = now.Sub(*st.StartedAt)
	}

	if res.err != nil {
		st.Status = domain.StepStatusFailed
		st.Error = res.err.Message
		st.ErrorKind = res.err.Kind
		run.Failures = append(run.Failures, domain.StepFailure{
			StepID:    step.ID,
			Action:    step.Action,
			Kind:      res.err.Kind,
			Message:   res.err.Message,
			Attempts:  res.attempts,
			Timestamp: now,
		})
		e.persist(ctx, run)
		e.metrics.RecordStepExecuted(step.Action, string(st.Status), duration)
		e.emit(ctx, domain.EventStepFailed, run, step.ID, map[string]interface{}{
			"action":   step.Action,
			"kind":     string(res.err.Kind),
			"error":    res.err.Message,
			"attempts": res.attempts,
		})
		e.logger.Error("step failed",
			zap.String("run_id", run.RunID),
			zap.String("step_id", step.ID),
			zap.String("action", step.Action),
			zap.String("kind", string(res.err.Kind)),
			zap.Int("attempts", res.attempts))
		return
	}

	st.Status = domain.StepStatusSucceeded
	st.Output = res.output
	// Context updates are merge-only per step key: two independent steps
	// completing back to back each write their own key, neither is lost.
	run.Context[step.ID] = res.output

	if step.SaveTo != "" {
		run.Context[step.SaveTo] = res.output
		ref := domain.ResourceRef{
			Key:       step.SaveTo,
			Value:     res.output,
			RunID:     run.RunID,
			StepID:    step.ID,
			CreatedAt: now,
		}
		if err := e.store.PutResource(ctx, ref); err != nil {
			e.logger.Warn("failed to publish resource reference",
				zap.String("key", step.SaveTo),
				zap.Error(err))
		} else {
			e.emit(ctx, domain.EventResourceCreated, run, step.ID, map[string]interface{}{
				"key": step.SaveTo,
			})
		}
	}

	e.persist(ctx, run)
	e.metrics.RecordStepExecuted(step.Action, string(st.Status), duration)
	e.emit(ctx, domain.EventStepCompleted, run, step.ID, map[string]interface{}{
		"action":   step.Action,
		"attempts": res.attempts,
	})
	e.logger.Info("step completed",
		zap.String("run_id", run.RunID),
		zap.String("step_id", step.ID),
		zap.String("action", step.Action),
		zap.Duration("duration", duration))
}

// finalize settles the run's terminal status and announces it.
func (e *Engine) finalize(ctx context.Context, run *domain.Run, policy domain.FailurePolicy, cancelled, timedOut bool) {
	var succeeded, failed, skipped, pending int
	for _, st := range run.Steps {
		switch st.Status {
		case domain.StepStatusSucceeded:
			succeeded++
		case domain.StepStatusFailed:
			failed++
		case domain.StepStatusSkipped:
			skipped++
		default:
			pending++
		}
	}

	// A run whose every step already succeeded settles Completed even when
	// the deadline or a cancel raced the last completion.
	switch {
	case failed == 0 && skipped == 0 && pending == 0:
		run.Status = domain.RunStatusCompleted
	case timedOut:
		run.Status = domain.RunStatusFailed
	case cancelled:
		run.Status = domain.RunStatusCancelled
	case succeeded == 0:
		run.Status = domain.RunStatusFailed
	default:
		run.Status = domain.RunStatusPartiallyFailed
	}

	// All-or-nothing policy turns any partial outcome into failure.
	if run.Status == domain.RunStatusPartiallyFailed && policy == domain.FailurePolicyAllOrNothing {
		run.Status = domain.RunStatusFailed
	}

	now := time.Now()
	run.CompletedAt = &now
	e.persist(ctx, run)

	eventType := domain.EventWorkflowCompleted
	switch run.Status {
	case domain.RunStatusFailed, domain.RunStatusPartiallyFailed:
		eventType = domain.EventWorkflowFailed
	case domain.RunStatusCancelled:
		eventType = domain.EventWorkflowCancelled
	}
	e.emit(ctx, eventType, run, "", map[string]interface{}{
		"status":    string(run.Status),
		"succeeded": succeeded,
		"failed":    failed,
		"skipped":   skipped,
	})
	e.metrics.RecordRunCompleted(string(run.Status), now.Sub(run.SubmittedAt))

	e.logger.Info("run finished",
		zap.String("run_id", run.RunID),
		zap.String("workflow_id", run.WorkflowID),
		zap.String("status", string(run.Status)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped))
}

// persist saves a run snapshot; a storage failure is logged, execution
// continues on in-memory state.
func (e *Engine) persist(ctx context.Context, run *domain.Run) {
	if err := e.store.SaveRun(ctx, run); err != nil {
		e.logger.Error("failed to persist run state",
			zap.String("run_id", run.RunID),
			zap.Error(err))
	}
}

// emit publishes a lifecycle event.
func (e *Engine) emit(ctx context.Context, eventType domain.EventType, run *domain.Run, stepID string, payload map[string]interface{}) {
	e.bus.Publish(ctx, domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "orchestrator",
		RunID:     run.RunID,
		StepID:    stepID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	e.metrics.RecordEventPublished(string(eventType))
}

// toActionError maps invoker failures into the ActionError taxonomy.
func toActionError(err error) *domain.ActionError {
	var invalid *domain.InvalidParametersError
	if errors.As(err, &invalid) {
		return &domain.ActionError{
			Kind:      domain.ErrKindInvalidInput,
			Message:   invalid.Error(),
			Retryable: false,
		}
	}
	return domain.AsActionError(err)
}
