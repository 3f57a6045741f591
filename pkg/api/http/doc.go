// Package http exposes the workflow REST API on gin: submission,
// run inspection, cancellation, template listing, health and metrics.
package http
