// Package domain defines the core types of the stepflow orchestrator:
// workflow definitions, runs, steps, actions, events and the error
// taxonomy shared by every layer above it.
package domain
