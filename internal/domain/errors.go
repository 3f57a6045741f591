package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Definition-time errors. They fail fast, before any step executes.
var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrInvalidWorkflow = errors.New("invalid workflow submission")
	ErrCyclicWorkflow  = errors.New("workflow graph contains a cycle")
	ErrRunNotFound     = errors.New("run not found")
	ErrRunTerminal     = errors.New("run already in terminal state")
	ErrEmptyWorkflow   = errors.New("workflow must have at least one step")
)

// InvalidParametersError reports which parameter fields failed validation,
// before any external call was made.
type InvalidParametersError struct {
	Action string
	Fields []string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters for action %s: %s", e.Action, strings.Join(e.Fields, ", "))
}
