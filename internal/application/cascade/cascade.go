// Package cascade maps lifecycle event variants to follow-up action
// invocations: a workflow failure can post a chat notification, a created
// resource can kick off a backup, and so on. Each rule runs as its own
// bus handler, so one misbehaving follow-up never affects the publisher
// or any other rule.
package cascade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

// Rule binds one event variant to one registered action. Params builds the
// invocation parameters from the triggering event; a nil Params forwards
// the event payload unchanged.
type Rule struct {
	Event  domain.EventType
	Action string
	Params func(event domain.Event) map[string]interface{}
}

// Dispatcher invokes follow-up actions for subscribed rules.
type Dispatcher struct {
	invoker ports.ActionInvoker
	logger  *zap.Logger
	timeout time.Duration
}

// NewDispatcher builds a dispatcher. timeout bounds each follow-up invocation.
func NewDispatcher(invoker ports.ActionInvoker, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		invoker: invoker,
		logger:  logger,
		timeout: timeout,
	}
}

// Attach registers one rule on the bus. The action name is resolved up
// front so a typo fails at wiring time, not on the first matching event.
func (d *Dispatcher) Attach(bus ports.EventBus, rule Rule) error {
	if rule.Event == "" {
		return fmt.Errorf("cascade rule for %s has no event type", rule.Action)
	}
	if _, err := d.invoker.Resolve(rule.Action); err != nil {
		return fmt.Errorf("cascade rule on %s: %w", rule.Event, err)
	}
	bus.Subscribe(rule.Event, func(ctx context.Context, event domain.Event) error {
		return d.fire(rule, event)
	})
	d.logger.Info("cascade rule attached",
		zap.String("event", string(rule.Event)),
		zap.String("action", rule.Action))
	return nil
}

// AttachEntries parses and attaches "event=action" entries, the form used
// by the CASCADE_ENTRIES configuration variable. Entry-driven rules forward
// the event payload as the action parameters.
func (d *Dispatcher) AttachEntries(bus ports.EventBus, entries []string) error {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		event, action, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("invalid cascade entry %q, want event=action", entry)
		}
		err := d.Attach(bus, Rule{
			Event:  domain.EventType(strings.TrimSpace(event)),
			Action: strings.TrimSpace(action),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// fire runs one follow-up invocation. Failures are logged and returned to
// the bus, which isolates them from the publisher and the other handlers.
func (d *Dispatcher) fire(rule Rule, event domain.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	params := map[string]interface{}{}
	if rule.Params != nil {
		params = rule.Params(event)
	} else {
		for k, v := range event.Payload {
			params[k] = v
		}
	}

	if _, err := d.invoker.Invoke(ctx, rule.Action, params); err != nil {
		d.logger.Error("cascade action failed",
			zap.String("event", string(event.Type)),
			zap.String("action", rule.Action),
			zap.String("run_id", event.RunID),
			zap.Error(err))
		return err
	}
	d.logger.Debug("cascade action invoked",
		zap.String("event", string(event.Type)),
		zap.String("action", rule.Action),
		zap.String("run_id", event.RunID))
	return nil
}
