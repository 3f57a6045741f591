package ports

import (
	"context"
	"time"

	"github.com/elitedynamics/stepflow/internal/domain"
)

// EventHandler consumes one event. A returned error is logged by the bus
// and never reaches the publisher or other handlers.
type EventHandler func(ctx context.Context, event domain.Event) error

// Subscription identifies one registered handler so short-lived observers
// can deregister on their way out.
type Subscription uint64

// EventBus decouples lifecycle transitions from follow-up logic. Handlers
// for the same event type run in registration order; no ordering holds
// across types. Publish never blocks on handler outcome.
type EventBus interface {
	Subscribe(eventType domain.EventType, handler EventHandler) Subscription
	Unsubscribe(sub Subscription)
	Publish(ctx context.Context, event domain.Event)
	Close() error
}

// HotStore is the in-process tier: values live only for the process
// lifetime, a miss is plain absence.
type HotStore interface {
	Put(key string, value interface{})
	Get(key string) (interface{}, bool)
	Delete(key string)
	Keys(prefix string) []string
}

// WarmStore is the shared-cache tier with explicit expiry. A miss is not an
// error, just absence.
type WarmStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Archive is the cold tier, reached through an external archival
// collaborator. Writes append a new version, never overwrite.
type Archive interface {
	Archive(ctx context.Context, key string, value []byte, metadata map[string]string) error
	Retrieve(ctx context.Context, key string) ([]byte, bool, error)
}

// MetricsCollector records orchestration metrics.
type MetricsCollector interface {
	RecordRunSubmitted(workflow string)
	RecordRunCompleted(status string, duration time.Duration)
	RecordStepExecuted(action, status string, duration time.Duration)
	RecordStepRetried(action string)
	SetActiveRuns(count int)
	RecordEventPublished(eventType string)
}

// CredentialProvider hands out a live credential for an external service.
// Acquisition and refresh cadence are the provider's concern.
type CredentialProvider interface {
	Credential(ctx context.Context, service string) (domain.Credentials, error)
}

// ActionInvoker is the registry boundary the orchestrator depends on.
// Resolve fails with domain.ErrUnknownAction for absent names; Invoke
// validates parameters before any external call and wraps failures into
// *domain.ActionError.
type ActionInvoker interface {
	Resolve(name string) (domain.ActionSpec, error)
	Invoke(ctx context.Context, name string, params map[string]interface{}) (interface{}, error)
}
