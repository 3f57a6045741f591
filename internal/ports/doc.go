// Package ports declares the interfaces between the application core and
// its adapters: event bus, tiered storage, metrics, credentials and the
// action invoker. Adapters under pkg/adapters implement them; the in-memory
// variants double as test fakes.
package ports
