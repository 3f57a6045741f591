// Package scheduler registers time-based workflow triggers: cron
// expressions and fixed intervals, both expressed in robfig/cron syntax
// (intervals use the @every form). A tick submits its workflow and moves
// on; a failed submission is logged and never stops the schedule, and a
// tick missed while the process was down is not replayed.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/application/orchestrator"
	"github.com/elitedynamics/stepflow/internal/domain"
)

// Submitter is the slice of the orchestration surface a trigger needs.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error)
}

// Trigger binds one schedule spec to one registered workflow template.
type Trigger struct {
	Workflow string
	Spec     string
	Params   map[string]interface{}
}

// Scheduler drives registered triggers off a single cron runner.
type Scheduler struct {
	cron      *cron.Cron
	submitter Submitter
	logger    *zap.Logger
	timeout   time.Duration
}

// New builds a scheduler. timeout bounds each triggered submission.
func New(submitter Submitter, logger *zap.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		cron:      cron.New(),
		submitter: submitter,
		logger:    logger,
		timeout:   timeout,
	}
}

// Register adds a trigger. The spec is validated immediately; the workflow
// name is resolved at fire time, so a trigger may reference a template
// registered later.
func (s *Scheduler) Register(t Trigger) error {
	if t.Workflow == "" {
		return fmt.Errorf("trigger has no workflow")
	}
	if t.Spec == "" {
		return fmt.Errorf("trigger for %s has no schedule spec", t.Workflow)
	}
	_, err := s.cron.AddFunc(t.Spec, func() { s.fire(t) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", t.Spec, t.Workflow, err)
	}
	s.logger.Info("trigger registered",
		zap.String("workflow", t.Workflow),
		zap.String("spec", t.Spec))
	return nil
}

// RegisterEntries parses and registers "workflow=spec" entries, the form
// used by the SCHEDULE_ENTRIES configuration variable.
func (s *Scheduler) RegisterEntries(entries []string) error {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		workflow, spec, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("invalid schedule entry %q, want workflow=spec", entry)
		}
		if err := s.Register(Trigger{
			Workflow: strings.TrimSpace(workflow),
			Spec:     strings.TrimSpace(spec),
		}); err != nil {
			return err
		}
	}
	return nil
}

// fire submits one run for a trigger. Every failure mode ends here, logged;
// the schedule keeps ticking regardless.
func (s *Scheduler) fire(t Trigger) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.submitter.Submit(ctx, orchestrator.SubmitRequest{
		Workflow: t.Workflow,
		Params:   t.Params,
		Mode:     domain.ModeExecution,
	})
	if err != nil {
		s.logger.Error("scheduled submission failed",
			zap.String("workflow", t.Workflow),
			zap.Error(err))
		return
	}
	s.logger.Info("scheduled run submitted",
		zap.String("workflow", t.Workflow),
		zap.String("run_id", res.RunID))
}

// Start begins firing triggers. Ticks that would have fired before Start
// are simply not delivered.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("triggers", len(s.cron.Entries())))
}

// Stop halts trigger delivery and waits for in-progress fires, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
