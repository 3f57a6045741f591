// Package orchestrator implements the DAG execution engine for workflow
// runs.
//
// The manager coordinates run lifecycle (submit, inspect, cancel), the
// validator ensures definitions are well-formed with no cycles and only
// registered actions, and the engine executes steps in dependency order:
// independent steps concurrently, dependent steps strictly sequenced, with
// per-step retry, timeout and skip propagation. Every state transition is
// persisted through the state store and announced on the event bus.
package orchestrator
