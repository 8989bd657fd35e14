// Package metrics holds the Prometheus collectors for tool calls and
// streaming sessions. Every method is safe on a nil *Collector so callers
// can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application on a private
// registry.
type Collector struct {
	registry *prometheus.Registry

	ToolCalls      *prometheus.CounterVec
	ToolDuration   *prometheus.HistogramVec
	ActiveSessions prometheus.Gauge
	SessionsTotal  prometheus.Counter
}

// New creates a collector with the given namespace.
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	toolCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	toolDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call duration in seconds, including key derivation",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open streaming sessions",
		},
	)

	sessionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of streaming sessions opened",
		},
	)

	registry.MustRegister(
		toolCalls,
		toolDuration,
		activeSessions,
		sessionsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry:       registry,
		ToolCalls:      toolCalls,
		ToolDuration:   toolDuration,
		ActiveSessions: activeSessions,
		SessionsTotal:  sessionsTotal,
	}
}

// ObserveToolCall records one finished tool call. outcome is "ok" or an
// error code.
func (c *Collector) ObserveToolCall(tool, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.ToolCalls.WithLabelValues(tool, outcome).Inc()
	c.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// SessionOpened records a new streaming session.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.SessionsTotal.Inc()
	c.ActiveSessions.Inc()
}

// SessionClosed records a streaming session teardown.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.ActiveSessions.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
