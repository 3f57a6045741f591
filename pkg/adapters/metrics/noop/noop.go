// Package noop provides a metrics collector that discards everything.
// Useful in tests and in deployments that disable the metrics endpoint.
package noop

import "time"

// Collector implements ports.MetricsCollector with no-ops.
type Collector struct{}

// NewCollector returns a collector that records nothing.
func NewCollector() *Collector { return &Collector{} }

func (*Collector) RecordRunSubmitted(string)                        {}
func (*Collector) RecordRunCompleted(string, time.Duration)         {}
func (*Collector) RecordStepExecuted(string, string, time.Duration) {}
func (*Collector) RecordStepRetried(string)                         {}
func (*Collector) SetActiveRuns(int)                                {}
func (*Collector) RecordEventPublished(string)                      {}
