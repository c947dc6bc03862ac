// Package metrics exposes Prometheus collectors for orchestration runs,
// task executions and event delivery.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oneshot"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	tasks        *prometheus.CounterVec
	taskFailures *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	recorderErrs prometheus.Counter
}

// New creates a Metrics with its own registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestration runs by intent and final status.",
		}, []string{"intent", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of orchestration runs.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 120, 300},
		}, []string{"intent"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_executions_total",
			Help:      "Task executions by task and the path that produced the result.",
		}, []string{"task", "path"}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_failures_total",
			Help:      "Task executions where both primary and fallback failed.",
		}, []string{"task"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of task executions.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"task"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Provider tokens consumed, by consumer.",
		}, []string{"consumer"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations made by the agent runtime, by task, tool and outcome.",
		}, []string{"task", "tool", "outcome"}),
		recorderErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_errors_total",
			Help:      "Trace and document writes that failed.",
		}),
	}
	reg.MustRegister(
		m.runs, m.runDuration, m.tasks, m.taskFailures, m.taskDuration, m.tokens, m.toolCalls, m.recorderErrs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunFinished records one completed or failed run.
func (m *Metrics) RunFinished(intent, status string, tokens int, d time.Duration) {
	if m == nil {
		return
	}
	if intent == "" {
		intent = "unclassified"
	}
	m.runs.WithLabelValues(intent, status).Inc()
	m.runDuration.WithLabelValues(intent).Observe(d.Seconds())
	if tokens > 0 {
		m.tokens.WithLabelValues("orchestrator").Add(float64(tokens))
	}
}

// TaskFinished records a task that produced a result on path.
func (m *Metrics) TaskFinished(task, path string, tokens int, d time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(task, path).Inc()
	m.taskDuration.WithLabelValues(task).Observe(d.Seconds())
	if tokens > 0 {
		m.tokens.WithLabelValues(task).Add(float64(tokens))
	}
}

// TaskFailed records a task whose fallback also failed.
func (m *Metrics) TaskFailed(task string, d time.Duration) {
	if m == nil {
		return
	}
	m.taskFailures.WithLabelValues(task).Inc()
	m.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

// ToolCalled records one tool invocation made on behalf of task.
func (m *Metrics) ToolCalled(task, tool string, isError bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if isError {
		outcome = "error"
	}
	m.toolCalls.WithLabelValues(task, tool, outcome).Inc()
}

// RecorderError counts a failed trace or document write.
func (m *Metrics) RecorderError() {
	if m == nil {
		return
	}
	m.recorderErrs.Inc()
}

// DeliveryStats is implemented by the event broadcaster.
type DeliveryStats interface {
	PublishedCount() uint64
	DroppedCount() uint64
}

// WatchDelivery exposes a broadcaster's counters, read at scrape time.
func (m *Metrics) WatchDelivery(s DeliveryStats) {
	if m == nil || s == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events handed to the broadcaster.",
		}, func() float64 { return float64(s.PublishedCount()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_subscribers_dropped_total",
			Help:      "Subscribers removed after a failed delivery.",
		}, func() float64 { return float64(s.DroppedCount()) }),
	)
}
