// Package state implements the tiered state store: a hot in-process cache,
// a warm shared cache with expiry, and a cold durable archive reached
// through an external collaborator.
//
// The tiers are deliberately not chained: a warm miss falls through to cold
// storage only when the caller asks for it explicitly, keeping read latency
// predictable. Cold writes are asynchronous and never block step
// completion; archival failures are logged, not raised.
package state
