package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

const queueDepth = 256

// Bus is the in-process event bus. Subscriptions are held in an explicit
// table keyed by event type; handlers for one type run in registration
// order on a dedicated dispatch goroutine, so a slow handler for one type
// never delays another type's handlers.
//
// Handler failures (errors and panics) are caught and logged per handler:
// they never reach the publisher, other handlers, or the run's status.
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[domain.EventType][]subscriber
	subTypes map[ports.Subscription]domain.EventType
	queues   map[domain.EventType]chan domain.Event
	nextSub  ports.Subscription
	closed   bool

	wg sync.WaitGroup
}

// subscriber pairs a handler with the handle used to remove it.
type subscriber struct {
	id      ports.Subscription
	handler ports.EventHandler
}

// NewBus creates an event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger:   logger,
		handlers: make(map[domain.EventType][]subscriber),
		subTypes: make(map[ports.Subscription]domain.EventType),
		queues:   make(map[domain.EventType]chan domain.Event),
	}
}

// Subscribe registers a handler for an event type. Multiple handlers per
// type are allowed and run independently, in registration order. The
// returned handle removes the handler via Unsubscribe.
func (b *Bus) Subscribe(eventType domain.EventType, handler ports.EventHandler) ports.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	id := b.nextSub
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})
	b.subTypes[id] = eventType
	return id
}

// Unsubscribe removes one handler. Events already queued may still reach
// it; nothing published afterwards will. Unknown handles are ignored.
func (b *Bus) Unsubscribe(sub ports.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	eventType, ok := b.subTypes[sub]
	if !ok {
		return
	}
	delete(b.subTypes, sub)
	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == sub {
			b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Publish enqueues an event for its type's dispatcher. The publisher never
// observes handler outcomes. Events with no subscribers are dropped.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.Warn("event published after bus close",
			zap.String("type", string(event.Type)))
		return
	}
	if len(b.handlers[event.Type]) == 0 {
		b.mu.Unlock()
		return
	}
	queue, ok := b.queues[event.Type]
	if !ok {
		queue = make(chan domain.Event, queueDepth)
		b.queues[event.Type] = queue
		b.wg.Add(1)
		go b.dispatch(event.Type, queue)
	}
	b.mu.Unlock()

	select {
	case queue <- event:
	case <-ctx.Done():
		b.logger.Warn("dropping event, publish context cancelled",
			zap.String("type", string(event.Type)),
			zap.String("run_id", event.RunID))
	}
}

// dispatch drains one type's queue, invoking handlers in registration
// order and isolating each failure.
func (b *Bus) dispatch(eventType domain.EventType, queue chan domain.Event) {
	defer b.wg.Done()

	for event := range queue {
		b.mu.RLock()
		subs := make([]subscriber, len(b.handlers[eventType]))
		copy(subs, b.handlers[eventType])
		b.mu.RUnlock()

		for _, s := range subs {
			b.invoke(s, event)
		}
	}
}

// invoke runs one handler, converting a panic into a logged error.
func (b *Bus) invoke(s subscriber, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("type", string(event.Type)),
				zap.Uint64("subscriber", uint64(s.id)),
				zap.Any("panic", r))
		}
	}()

	if err := s.handler(context.Background(), event); err != nil {
		b.logger.Error("event handler failed",
			zap.String("type", string(event.Type)),
			zap.String("run_id", event.RunID),
			zap.Uint64("subscriber", uint64(s.id)),
			zap.Error(err))
	}
}

// Close stops dispatching. Queued events are drained before Close returns.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus already closed")
	}
	b.closed = true
	for _, queue := range b.queues {
		close(queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
