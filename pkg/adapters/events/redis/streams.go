package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

// StreamBridge forwards lifecycle events from the in-process bus onto
// Redis Streams, one stream per event type, so external observers
// (notification and audit collaborators) can consume them without coupling
// to orchestrator internals. A forwarding failure is logged, never raised:
// external observability must not affect run outcomes.
type StreamBridge struct {
	client *redis.Client
	logger *zap.Logger
	maxLen int64
}

// NewStreamBridge creates a stream bridge. maxLen caps each stream's
// length (approximate trimming); zero means unbounded.
func NewStreamBridge(client *redis.Client, maxLen int64, logger *zap.Logger) *StreamBridge {
	return &StreamBridge{client: client, logger: logger, maxLen: maxLen}
}

// Attach subscribes the bridge to every lifecycle event type on the bus.
func (b *StreamBridge) Attach(bus ports.EventBus) {
	for _, eventType := range domain.EventTypes() {
		bus.Subscribe(eventType, b.forward)
	}
}

// forward publishes one event onto its type's stream.
func (b *StreamBridge) forward(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey(event.Type),
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}

	if _, err := b.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	b.logger.Debug("event forwarded",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("run_id", event.RunID))
	return nil
}

// streamKey returns the Redis stream key for an event type.
func streamKey(eventType domain.EventType) string {
	return fmt.Sprintf("stepflow:events:%s", eventType)
}
