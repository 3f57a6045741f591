package domain

import "time"

// EventType tags an event variant. Subscriptions are keyed by these tags,
// never by free-form strings.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow.started"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowFailed    EventType = "workflow.failed"
	EventWorkflowCancelled EventType = "workflow.cancelled"
	EventStepStarted       EventType = "step.started"
	EventStepCompleted     EventType = "step.completed"
	EventStepFailed        EventType = "step.failed"
	EventResourceCreated   EventType = "resource.created"
)

// EventTypes lists every variant, in a stable order. Used by bridges that
// forward the whole lifecycle stream to external observers.
func EventTypes() []EventType {
	return []EventType{
		EventWorkflowStarted,
		EventWorkflowCompleted,
		EventWorkflowFailed,
		EventWorkflowCancelled,
		EventStepStarted,
		EventStepCompleted,
		EventStepFailed,
		EventResourceCreated,
	}
}

// Event is a typed notification about something that happened. The JSON
// field names form the stable schema external observers subscribe to.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	RunID     string                 `json:"workflowRunId"`
	StepID    string                 `json:"stepId,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}
