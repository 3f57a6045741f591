// Package websocket streams per-run lifecycle events to connected clients.
package websocket
