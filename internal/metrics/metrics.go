package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry       *prometheus.Registry
	prompts        *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	changes        *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	requests       *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		prompts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "prompts_total",
			Help:      "Prompts processed by model, outcome and error kind.",
		}, []string{"model", "outcome", "kind"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "driftwatch",
			Name:      "backend_call_seconds",
			Help:      "Latency of individual backend calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"model", "result"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "change_events_total",
			Help:      "Detected stance changes by model and alert level.",
		}, []string{"model", "alert_level"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "sessions_total",
			Help:      "Finished test sessions by model and final status.",
		}, []string{"model", "status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driftwatch",
			Name:      "http_requests_total",
			Help:      "Read API requests by route template and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.prompts,
		m.backendLatency,
		m.changes,
		m.sessions,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PromptCompleted(model string) {
	if m == nil {
		return
	}
	m.prompts.WithLabelValues(model, "completed", "").Inc()
}

func (m *Metrics) PromptFailed(model, kind string) {
	if m == nil {
		return
	}
	m.prompts.WithLabelValues(model, "failed", kind).Inc()
}

func (m *Metrics) ObserveBackend(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.backendLatency.WithLabelValues(model, result).Observe(d.Seconds())
}

func (m *Metrics) ChangeDetected(model, level string) {
	if m == nil {
		return
	}
	m.changes.WithLabelValues(model, level).Inc()
}

func (m *Metrics) SessionFinished(model, status string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(model, status).Inc()
}

func (m *Metrics) RequestServed(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
