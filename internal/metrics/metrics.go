// Package metrics provides Prometheus collectors for the client.
//
// Key metrics:
//   - frames received, parse errors, listener fan-outs
//   - pending request count and request latency
//   - reconnects
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client collectors. All methods are safe on a nil
// receiver so instrumentation can be left unwired.
type Metrics struct {
	registry *prometheus.Registry

	framesReceived  prometheus.Counter
	parseErrors     prometheus.Counter
	listenerCalls   prometheus.Counter
	listenerPanics  prometheus.Counter
	reconnects      prometheus.Counter
	pendingRequests prometheus.Gauge
	requestLatency  prometheus.Histogram
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlink_frames_received_total",
			Help: "Inbound frames delivered by the transport.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlink_parse_errors_total",
			Help: "Inbound frames dropped because they failed to parse.",
		}),
		listenerCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlink_listener_calls_total",
			Help: "Listener invocations across all registered listeners.",
		}),
		listenerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlink_listener_panics_total",
			Help: "Listener invocations that panicked and were isolated.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerlink_reconnects_total",
			Help: "Socket sessions established after the first.",
		}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerlink_pending_requests",
			Help: "Requests awaiting a reply, timeout, or disconnect.",
		}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerlink_request_duration_seconds",
			Help:    "Latency from dispatch to settlement.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.framesReceived,
		m.parseErrors,
		m.listenerCalls,
		m.listenerPanics,
		m.reconnects,
		m.pendingRequests,
		m.requestLatency,
	)
	return m
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *Metrics) ParseError() {
	if m != nil {
		m.parseErrors.Inc()
	}
}

func (m *Metrics) ListenerCall() {
	if m != nil {
		m.listenerCalls.Inc()
	}
}

func (m *Metrics) ListenerPanic() {
	if m != nil {
		m.listenerPanics.Inc()
	}
}

func (m *Metrics) Reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.pendingRequests.Set(float64(n))
	}
}

func (m *Metrics) ObserveRequestSeconds(s float64) {
	if m != nil {
		m.requestLatency.Observe(s)
	}
}
