// Package metrics holds the prometheus collectors for the stream pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stables"

// Metrics groups the pipeline and transport collectors.
type Metrics struct {
	registry *prometheus.Registry

	eventsDecoded  *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	eventsFiltered *prometheus.CounterVec
	eventsSent     *prometheus.CounterVec
	eventsDropped  prometheus.Counter
	activations    *prometheus.CounterVec
	branchFailures *prometheus.CounterVec
	running        prometheus.Gauge
	sessions       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_decoded_total",
			Help:      "Transfer events decoded and accepted per network.",
		}, []string{"network"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Raw logs skipped because they could not be decoded.",
		}, []string{"network"}),
		eventsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_filtered_total",
			Help:      "Decoded events dropped because the contract is not in the registry.",
		}, []string{"network"}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_sent_total",
			Help:      "Frames written to stream clients.",
		}, []string{"network"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber buffer was full.",
		}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_activations_total",
			Help:      "Pipeline activation requests by outcome.",
		}, []string{"result"}),
		branchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_failures_total",
			Help:      "Network branches that ended with a fatal error.",
		}, []string{"network"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while an aggregated pipeline is active.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_sessions",
			Help:      "Open stream sessions.",
		}),
	}

	m.registry.MustRegister(
		m.eventsDecoded,
		m.decodeErrors,
		m.eventsFiltered,
		m.eventsSent,
		m.eventsDropped,
		m.activations,
		m.branchFailures,
		m.running,
		m.sessions,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EventDecoded counts an accepted Transfer event.
func (m *Metrics) EventDecoded(network string) {
	if m != nil {
		m.eventsDecoded.WithLabelValues(network).Inc()
	}
}

// DecodeError counts a raw log skipped as undecodable.
func (m *Metrics) DecodeError(network string) {
	if m != nil {
		m.decodeErrors.WithLabelValues(network).Inc()
	}
}

// EventFiltered counts an event from a contract missing in the registry.
func (m *Metrics) EventFiltered(network string) {
	if m != nil {
		m.eventsFiltered.WithLabelValues(network).Inc()
	}
}

// EventSent counts a frame written to a client.
func (m *Metrics) EventSent(network string) {
	if m != nil {
		m.eventsSent.WithLabelValues(network).Inc()
	}
}

// EventDropped counts an event lost to a full subscriber buffer.
func (m *Metrics) EventDropped() {
	if m != nil {
		m.eventsDropped.Inc()
	}
}

// Activation records an activation outcome: "started" or "reused".
func (m *Metrics) Activation(result string) {
	if m != nil {
		m.activations.WithLabelValues(result).Inc()
	}
}

// BranchFailed counts a fatal branch error.
func (m *Metrics) BranchFailed(network string) {
	if m != nil {
		m.branchFailures.WithLabelValues(network).Inc()
	}
}

// SetRunning sets the pipeline_running gauge.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
		return
	}
	m.running.Set(0)
}

// SessionOpened increments the open session gauge.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

// SessionClosed decrements the open session gauge.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}
