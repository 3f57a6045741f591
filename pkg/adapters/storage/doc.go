// Package storage provides storage tier implementations.
//
// Implementations:
//   - memory: in-process hot tier, plus warm/archive variants for testing
//   - redis: warm tier with TTL and append-only cold archive
package storage
