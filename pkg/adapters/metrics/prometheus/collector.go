// Package prometheus implements the metrics collector port on the
// Prometheus client, exposing orchestration counters, gauges and latency
// histograms under the stepflow_ namespace.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	runsSubmitted   *prometheus.CounterVec
	runsCompleted   *prometheus.CounterVec
	stepsExecuted   *prometheus.CounterVec
	stepsRetried    *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	activeRuns      prometheus.Gauge
	runDuration     *prometheus.HistogramVec
	stepDuration    *prometheus.HistogramVec
}

// NewCollector creates a collector registered on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		runsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_runs_submitted_total",
				Help: "Total number of workflow runs submitted",
			},
			[]string{"workflow"},
		),
		runsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_runs_completed_total",
				Help: "Total number of workflow runs finished, by terminal status",
			},
			[]string{"status"},
		),
		stepsExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_steps_executed_total",
				Help: "Total number of steps executed, by action and outcome",
			},
			[]string{"action", "status"},
		),
		stepsRetried: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_step_retries_total",
				Help: "Total number of step retry attempts",
			},
			[]string{"action"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_events_published_total",
				Help: "Total number of lifecycle events published",
			},
			[]string{"type"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stepflow_active_runs",
				Help: "Number of runs currently executing",
			},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stepflow_run_duration_seconds",
				Help:    "Workflow run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stepflow_step_duration_seconds",
				Help:    "Step execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"action"},
		),
	}
}

// RecordRunSubmitted counts one submitted run.
func (c *Collector) RecordRunSubmitted(workflow string) {
	c.runsSubmitted.WithLabelValues(workflow).Inc()
}

// RecordRunCompleted counts one finished run and observes its duration.
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStepExecuted counts one finished step and observes its duration.
func (c *Collector) RecordStepExecuted(action, status string, duration time.Duration) {
	c.stepsExecuted.WithLabelValues(action, status).Inc()
	c.stepDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordStepRetried counts one retry attempt.
func (c *Collector) RecordStepRetried(action string) {
	c.stepsRetried.WithLabelValues(action).Inc()
}

// SetActiveRuns reports the current number of live runs.
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}

// RecordEventPublished counts one published event.
func (c *Collector) RecordEventPublished(eventType string) {
	c.eventsPublished.WithLabelValues(eventType).Inc()
}
