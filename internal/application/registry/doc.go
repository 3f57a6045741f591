// Package registry implements the action registry: an immutable mapping
// from action name to an executable unit with a declared parameter
// contract.
//
// The registry is constructed once at process start through a Builder and
// injected into the orchestrator. Parameter contracts are JSON Schemas
// compiled at registration; Invoke validates inputs against them before any
// external call is made. The registry itself is side-effect-free
// bookkeeping: whatever the wrapped action does happens beyond the
// ActionFunc boundary.
package registry
