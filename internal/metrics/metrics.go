package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// ToolCalls counts finished calls by tool and status.
	ToolCalls *prometheus.CounterVec
	// ToolErrors counts failed calls by tool and error kind.
	ToolErrors *prometheus.CounterVec
	// ToolDuration observes handler run time in seconds.
	ToolDuration *prometheus.HistogramVec
	// CacheHits counts idempotency cache hits by tool.
	CacheHits *prometheus.CounterVec
	// InFlight is the number of calls being handled.
	InFlight prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_tool_calls_total",
			Help: "Tool calls by tool and status.",
		}, []string{"tool", "status"}),
		ToolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_tool_errors_total",
			Help: "Failed tool calls by tool and error kind.",
		}, []string{"tool", "kind"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutor_tool_duration_seconds",
			Help:    "Tool handler duration in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		}, []string{"tool"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_tool_cache_hits_total",
			Help: "Idempotency cache hits by tool.",
		}, []string{"tool"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tutor_tool_calls_in_flight",
			Help: "Tool calls currently being handled.",
		}),
	}
	m.registry.MustRegister(
		m.ToolCalls, m.ToolErrors, m.ToolDuration, m.CacheHits, m.InFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCall records a finished call. kind is empty for successful calls.
func (m *Metrics) ObserveCall(tool, status, kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	if kind != "" {
		m.ToolErrors.WithLabelValues(tool, kind).Inc()
	}
	if took > 0 {
		m.ToolDuration.WithLabelValues(tool).Observe(took.Seconds())
	}
}

// ObserveCacheHit records a cache hit.
func (m *Metrics) ObserveCacheHit(tool string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(tool).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
