// Package audit records the workflow lifecycle event stream into cold
// storage, one append-only trail per run, for after-the-fact inspection of
// runs long evicted from the hot and warm tiers.
package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/application/state"
	"github.com/elitedynamics/stepflow/internal/domain"
	"github.com/elitedynamics/stepflow/internal/ports"
)

// Recorder subscribes to every lifecycle event type and archives each
// event it sees. Archival is asynchronous and best-effort; it never slows
// down or fails the publishing side.
type Recorder struct {
	store  *state.Store
	logger *zap.Logger
}

// NewRecorder creates an audit recorder backed by the given store.
func NewRecorder(store *state.Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Attach subscribes the recorder to the full event stream.
func (r *Recorder) Attach(bus ports.EventBus) {
	for _, t := range domain.EventTypes() {
		bus.Subscribe(t, r.record)
	}
}

// record archives one event under the run's audit trail key.
func (r *Recorder) record(ctx context.Context, event domain.Event) error {
	key := fmt.Sprintf("audit:%s", event.RunID)
	r.store.PutCold(key, event, map[string]string{
		"event_type": string(event.Type),
		"event_id":   event.ID,
	})
	r.logger.Debug("event archived",
		zap.String("run_id", event.RunID),
		zap.String("type", string(event.Type)))
	return nil
}
