// Package events provides event bus implementations.
//
// Implementations:
//   - memory: typed in-process pub/sub with per-type ordered dispatch
//   - redis: Redis Streams bridge forwarding lifecycle events to external
//     observers
package events
