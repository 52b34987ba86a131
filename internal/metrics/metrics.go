// Package metrics exposes prometheus collectors for the counter engine and HTTP layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	clamps     *prometheus.CounterVec
	drift      *prometheus.CounterVec
	requests   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasktracker",
			Name:      "engine_operations_total",
			Help:      "Counter engine operations by name and outcome kind.",
		}, []string{"operation", "result"}),
		clamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasktracker",
			Name:      "counter_clamps_total",
			Help:      "Counter decrements that would have gone negative and were clamped at zero.",
		}, []string{"counter"}),
		drift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasktracker",
			Name:      "counter_drift_total",
			Help:      "Users whose stored counters disagreed with their task rows during an audit.",
		}, []string{"repaired"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tasktracker",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.clamps, m.drift, m.requests)
	}
	return m
}

func (m *Metrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) ObserveClamp(counter string) {
	if m == nil {
		return
	}
	m.clamps.WithLabelValues(counter).Inc()
}

func (m *Metrics) ObserveDrift(repaired bool) {
	if m == nil {
		return
	}
	label := "false"
	if repaired {
		label = "true"
	}
	m.drift.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveRequest(route, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, code).Observe(elapsed.Seconds())
}

// OperationCounter returns the counter for one operation and result pair.
func (m *Metrics) OperationCounter(operation, result string) prometheus.Counter {
	return m.operations.WithLabelValues(operation, result)
}

// ClampCounter returns the clamp counter for the named counter column.
func (m *Metrics) ClampCounter(counter string) prometheus.Counter {
	return m.clamps.WithLabelValues(counter)
}

// DriftCounter returns the drift counter for repaired or unrepaired users.
func (m *Metrics) DriftCounter(repaired bool) prometheus.Counter {
	if repaired {
		return m.drift.WithLabelValues("true")
	}
	return m.drift.WithLabelValues("false")
}
