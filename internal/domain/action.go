package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Credentials carries a live credential for one external service. How it is
// acquired and refreshed is the credential provider's concern, not ours.
type Credentials map[string]string

// ActionFunc is the executable unit behind a registered action. It performs
// one request/response call against an external service and returns its
// result verbatim.
type ActionFunc func(ctx context.Context, creds Credentials, params map[string]interface{}) (interface{}, error)

// ActionSpec declares an action's contract: its unique name, the service it
// talks to (used to look up credentials) and a JSON Schema describing its
// parameters. An empty schema means parameters are not validated.
type ActionSpec struct {
	Name        string          `json:"name"`
	Service     string          `json:"service,omitempty"`
	Description string          `json:"description,omitempty"`
	ParamSchema json.RawMessage `json:"param_schema,omitempty"`
}

// ErrorKind classifies an action failure.
type ErrorKind string

const (
	ErrKindUnauthorized        ErrorKind = "unauthorized"
	ErrKindInvalidInput        ErrorKind = "invalid_input"
	ErrKindRateLimited         ErrorKind = "rate_limited"
	ErrKindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	ErrKindTimeout             ErrorKind = "timeout"
	ErrKindUnknown             ErrorKind = "unknown"
)

// ActionError is a step-execution-time failure reported by an external
// collaborator. Retryable drives the engine's retry policy.
type ActionError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action error (%s): %s", e.Kind, e.Message)
}

// NewActionError builds an ActionError with the default retry
// classification for its kind.
func NewActionError(kind ErrorKind, message string) *ActionError {
	return &ActionError{
		Kind:      kind,
		Message:   message,
		Retryable: KindRetryable(kind),
	}
}

// KindRetryable returns the default retry classification: unauthorized and
// rate-limited calls are retried with backoff, timeouts and unavailable
// upstreams likewise; invalid input never is.
func KindRetryable(kind ErrorKind) bool {
	switch kind {
	case ErrKindUnauthorized, ErrKindRateLimited, ErrKindUpstreamUnavailable, ErrKindTimeout:
		return true
	default:
		return false
	}
}

// AsActionError normalizes any error returned by an action function. Errors
// that are not already an ActionError are wrapped as unknown, non-retryable.
func AsActionError(err error) *ActionError {
	if ae, ok := err.(*ActionError); ok {
		return ae
	}
	return &ActionError{Kind: ErrKindUnknown, Message: err.Error(), Retryable: false}
}
