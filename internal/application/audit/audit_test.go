package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/application/state"
	"github.com/elitedynamics/stepflow/internal/domain"
	memoryevents "github.com/elitedynamics/stepflow/pkg/adapters/events/memory"
	memorystorage "github.com/elitedynamics/stepflow/pkg/adapters/storage/memory"
)

func TestRecorderArchivesLifecycleEvents(t *testing.T) {
	archive := memorystorage.NewArchive()
	store := state.New(memorystorage.NewHotStore(), memorystorage.NewWarmStore(), archive, time.Hour, zap.NewNop())
	bus := memoryevents.NewBus(zap.NewNop())

	NewRecorder(store, zap.NewNop()).Attach(bus)

	bus.Publish(context.Background(), domain.Event{
		ID:    "e1",
		Type:  domain.EventWorkflowStarted,
		RunID: "run-1",
	})
	bus.Publish(context.Background(), domain.Event{
		ID:    "e2",
		Type:  domain.EventWorkflowCompleted,
		RunID: "run-1",
	})

	require.NoError(t, bus.Close())
	require.NoError(t, store.Close(context.Background()))

	assert.Equal(t, 2, archive.VersionCount("audit:run-1"))
}

func TestRecorderKeepsTrailsPerRun(t *testing.T) {
	archive := memorystorage.NewArchive()
	store := state.New(memorystorage.NewHotStore(), memorystorage.NewWarmStore(), archive, time.Hour, zap.NewNop())
	bus := memoryevents.NewBus(zap.NewNop())

	NewRecorder(store, zap.NewNop()).Attach(bus)

	bus.Publish(context.Background(), domain.Event{ID: "e1", Type: domain.EventStepFailed, RunID: "run-1"})
	bus.Publish(context.Background(), domain.Event{ID: "e2", Type: domain.EventStepFailed, RunID: "run-2"})

	require.NoError(t, bus.Close())
	require.NoError(t, store.Close(context.Background()))

	assert.Equal(t, 1, archive.VersionCount("audit:run-1"))
	assert.Equal(t, 1, archive.VersionCount("audit:run-2"))
}
