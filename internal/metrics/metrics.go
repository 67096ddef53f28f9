// Package metrics exposes relay metrics in Prometheus format.
//
// Metrics:
//   - jsonrelay_requests_total: submissions by endpoint and outcome
//   - jsonrelay_request_duration_seconds: end-to-end submission latency
//   - jsonrelay_forward_duration_seconds: downstream call latency
//   - jsonrelay_omitted_fields_total: output fields left out, by reason
//   - jsonrelay_config_reloads_total: endpoint file reloads by result
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jsonrelay/internal/core/engine"
)

const namespace = "jsonrelay"

// Request outcomes
const (
	OutcomeRelayed         = "relayed"
	OutcomeUnknownEndpoint = "unknown_endpoint"
	OutcomeInvalidPayload  = "invalid_payload"
	OutcomeTransformError  = "transformation_error"
	OutcomeTimeout         = "timeout"
	OutcomeForwardError    = "forward_error"
	OutcomeInternalError   = "internal_error"
	OutcomeNotReady        = "not_ready"
)

// Metrics holds the relay collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	forward  *prometheus.HistogramVec
	omitted  *prometheus.CounterVec
	reloads  *prometheus.CounterVec
}

// New creates the collectors and registers them with registry. A nil
// registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of submissions by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Submission latency in seconds, including the downstream call",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		forward: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "forward_duration_seconds",
				Help:      "Downstream call latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint", "result"},
		),

		omitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "omitted_fields_total",
				Help:      "Total number of output fields omitted by reason",
			},
			[]string{"endpoint", "reason"},
		),

		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of endpoint configuration reloads by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.requests,
		m.duration,
		m.forward,
		m.omitted,
		m.reloads,
	)

	return m
}

// ObserveRequest records one submission. Unknown endpoint ids are folded
// into a single label value to bound cardinality.
func (m *Metrics) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if outcome == OutcomeUnknownEndpoint || outcome == OutcomeNotReady {
		endpoint = "unknown"
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveForward records one downstream call.
func (m *Metrics) ObserveForward(endpoint string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.forward.WithLabelValues(endpoint, result).Observe(elapsed.Seconds())
}

// RecordOmission counts a field left out of an output document.
func (m *Metrics) RecordOmission(endpoint string, reason engine.OmitReason) {
	m.omitted.WithLabelValues(endpoint, string(reason)).Inc()
}

// RecordReload counts a configuration reload attempt.
func (m *Metrics) RecordReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
