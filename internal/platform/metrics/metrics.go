package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the time-lapse service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	sessionsStarted   prometheus.Counter
	sessionsCancelled prometheus.Counter
	framesRevealed    prometheus.Counter
	layersRemoved     prometheus.Counter
	actionsDeferred   prometheus.Counter
	activeSessions    prometheus.Gauge
}

// New creates and registers the service metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timelapse_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timelapse_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timelapse_sessions_started_total",
			Help: "Total number of animation sessions started",
		}),
		sessionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timelapse_sessions_cancelled_total",
			Help: "Total number of animation sessions cancelled by reset or supersession",
		}),
		framesRevealed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timelapse_frames_revealed_total",
			Help: "Total number of frames revealed on the map surface",
		}),
		layersRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timelapse_layers_removed_total",
			Help: "Total number of raster layers removed from the map surface",
		}),
		actionsDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timelapse_actions_deferred_total",
			Help: "Total number of actions queued while the map surface was not ready",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timelapse_active_sessions",
			Help: "Number of animation sessions currently running",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.sessionsStarted,
		m.sessionsCancelled,
		m.framesRevealed,
		m.layersRemoved,
		m.actionsDeferred,
		m.activeSessions,
	)
	return m
}

func (m *Metrics) IncRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

func (m *Metrics) IncErrors() {
	if m != nil {
		m.errorsTotal.Inc()
	}
}

func (m *Metrics) IncSessionsStarted() {
	if m != nil {
		m.sessionsStarted.Inc()
	}
}

func (m *Metrics) IncSessionsCancelled() {
	if m != nil {
		m.sessionsCancelled.Inc()
	}
}

func (m *Metrics) IncFramesRevealed() {
	if m != nil {
		m.framesRevealed.Inc()
	}
}

// AddLayersRemoved adds n to the removed layers counter.
func (m *Metrics) AddLayersRemoved(n int) {
	if m != nil && n > 0 {
		m.layersRemoved.Add(float64(n))
	}
}

func (m *Metrics) IncActionsDeferred() {
	if m != nil {
		m.actionsDeferred.Inc()
	}
}

// SetActiveSessions sets the running sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.activeSessions.Set(float64(n))
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
