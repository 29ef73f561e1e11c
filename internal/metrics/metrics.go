// Package metrics exposes Prometheus metrics for the agent and its API.
//
// Metrics register on a private registry so tests and multiple servers
// in one process do not collide. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gotravel"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	// TurnsTotal counts agent turns.
	// Labels: outcome (done|capped|failed|timeout)
	TurnsTotal *prometheus.CounterVec

	// TurnDuration measures whole-turn latency in seconds.
	// Labels: outcome
	TurnDuration *prometheus.HistogramVec

	// ToolCallsTotal counts tool calls requested by the model.
	// Labels: tool
	ToolCallsTotal *prometheus.CounterVec

	// TokensTotal tracks model token consumption.
	// Labels: model, type (input|output)
	TokensTotal *prometheus.CounterVec

	// BookingsTotal counts bookings created.
	// Labels: kind (package|hotel), source (agent|api)
	BookingsTotal *prometheus.CounterVec

	// HTTPRequests counts API requests.
	// Labels: method, route, status
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration measures API latency in seconds.
	// Labels: method, route
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_turns_total",
			Help:      "Agent turns by outcome.",
		}, []string{"outcome"}),
		TurnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_turn_duration_seconds",
			Help:      "Duration of agent turns in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		ToolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tool_calls_total",
			Help:      "Tool calls dispatched by the agent, by tool.",
		}, []string{"tool"}),
		TokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Model tokens consumed by model and direction.",
		}, []string{"model", "type"}),
		BookingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Bookings created by kind and source.",
		}, []string{"kind", "source"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by method, route, and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
		}, []string{"method", "route"}),
	}
}

// ObserveTurn records one finished agent turn.
func (m *Metrics) ObserveTurn(outcome, model string, tools []string, inputTokens, outputTokens int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	for _, name := range tools {
		m.ToolCallsTotal.WithLabelValues(name).Inc()
	}
	if inputTokens > 0 {
		m.TokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.TokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// ObserveBooking records a created booking.
func (m *Metrics) ObserveBooking(kind, source string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(kind, source).Inc()
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TrackSessions reports the number of resident sessions, read from
// count at scrape time.
func (m *Metrics) TrackSessions(count func() int) {
	if m == nil || count == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently held in memory.",
	}, func() float64 { return float64(count()) })
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
