package cascade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/domain"
	memoryevents "github.com/elitedynamics/stepflow/pkg/adapters/events/memory"
)

type invocation struct {
	action string
	params map[string]interface{}
}

type fakeInvoker struct {
	mu     sync.Mutex
	known  map[string]bool
	failOn map[string]error
	calls  []invocation
}

func newFakeInvoker(actions ...string) *fakeInvoker {
	known := make(map[string]bool, len(actions))
	for _, a := range actions {
		known[a] = true
	}
	return &fakeInvoker{known: known, failOn: map[string]error{}}
}

func (f *fakeInvoker) Resolve(name string) (domain.ActionSpec, error) {
	if !f.known[name] {
		return domain.ActionSpec{}, domain.ErrUnknownAction
	}
	return domain.ActionSpec{Name: name}, nil
}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{action: name, params: params})
	if err := f.failOn[name]; err != nil {
		return nil, err
	}
	return map[string]interface{}{"ok": true}, nil
}

func (f *fakeInvoker) invocations() []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]invocation, len(f.calls))
	copy(out, f.calls)
	return out
}

func TestDispatcherInvokesFollowUpAction(t *testing.T) {
	invoker := newFakeInvoker("teams.send_channel_message")
	bus := memoryevents.NewBus(zap.NewNop())
	d := NewDispatcher(invoker, zap.NewNop(), time.Second)

	err := d.Attach(bus, Rule{
		Event:  domain.EventWorkflowFailed,
		Action: "teams.send_channel_message",
		Params: func(event domain.Event) map[string]interface{} {
			return map[string]interface{}{"message": "run " + event.RunID + " failed"}
		},
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), domain.Event{
		ID:    "e1",
		Type:  domain.EventWorkflowFailed,
		RunID: "run-1",
	})
	require.NoError(t, bus.Close())

	calls := invoker.invocations()
	require.Len(t, calls, 1)
	assert.Equal(t, "teams.send_channel_message", calls[0].action)
	assert.Equal(t, "run run-1 failed", calls[0].params["message"])
}

func TestDispatcherForwardsPayloadByDefault(t *testing.T) {
	invoker := newFakeInvoker("backup.save")
	bus := memoryevents.NewBus(zap.NewNop())
	d := NewDispatcher(invoker, zap.NewNop(), time.Second)

	require.NoError(t, d.Attach(bus, Rule{
		Event:  domain.EventResourceCreated,
		Action: "backup.save",
	}))

	bus.Publish(context.Background(), domain.Event{
		ID:    "e1",
		Type:  domain.EventResourceCreated,
		RunID: "run-1",
		Payload: map[string]interface{}{
			"key":   "report",
			"value": "file-42",
		},
	})
	require.NoError(t, bus.Close())

	calls := invoker.invocations()
	require.Len(t, calls, 1)
	assert.Equal(t, "report", calls[0].params["key"])
	assert.Equal(t, "file-42", calls[0].params["value"])
}

func TestAttachRejectsUnknownAction(t *testing.T) {
	invoker := newFakeInvoker()
	bus := memoryevents.NewBus(zap.NewNop())
	d := NewDispatcher(invoker, zap.NewNop(), time.Second)

	err := d.Attach(bus, Rule{Event: domain.EventWorkflowFailed, Action: "nope"})
	require.ErrorIs(t, err, domain.ErrUnknownAction)
	require.NoError(t, bus.Close())
}

func TestAttachEntries(t *testing.T) {
	invoker := newFakeInvoker("backup.save", "teams.send_channel_message")
	bus := memoryevents.NewBus(zap.NewNop())
	d := NewDispatcher(invoker, zap.NewNop(), time.Second)

	err := d.AttachEntries(bus, []string{
		"resource.created=backup.save",
		" workflow.failed = teams.send_channel_message ",
		"",
	})
	require.NoError(t, err)

	assert.Error(t, d.AttachEntries(bus, []string{"not-an-entry"}))
	require.NoError(t, bus.Close())
}

func TestDispatcherIsolatesRuleFailures(t *testing.T) {
	invoker := newFakeInvoker("backup.save", "teams.send_channel_message")
	invoker.failOn["backup.save"] = domain.NewActionError(domain.ErrKindUpstreamUnavailable, "service down")
	bus := memoryevents.NewBus(zap.NewNop())
	d := NewDispatcher(invoker, zap.NewNop(), time.Second)

	require.NoError(t, d.Attach(bus, Rule{Event: domain.EventWorkflowFailed, Action: "backup.save"}))
	require.NoError(t, d.Attach(bus, Rule{Event: domain.EventWorkflowFailed, Action: "teams.send_channel_message"}))

	bus.Publish(context.Background(), domain.Event{ID: "e1", Type: domain.EventWorkflowFailed, RunID: "run-1"})
	require.NoError(t, bus.Close())

	calls := invoker.invocations()
	require.Len(t, calls, 2)
	assert.Equal(t, "backup.save", calls[0].action)
	assert.Equal(t, "teams.send_channel_message", calls[1].action)
}
