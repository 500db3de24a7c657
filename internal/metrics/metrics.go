// Package metrics exposes Prometheus instruments for sync activity on an
// explicit registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ici_sync"

type Metrics struct {
	registry *prometheus.Registry

	reconcilePasses *prometheus.CounterVec
	pushedMessages  prometheus.Counter
	remoteRequests  *prometheus.CounterVec
	remoteLatency   *prometheus.HistogramVec
	online          prometheus.Gauge
	envboxRequests  *prometheus.CounterVec
	envboxItems     *prometheus.GaugeVec
}

// New registers every instrument plus the Go runtime collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reconcilePasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Reconciliation passes by outcome.",
		}, []string{"status"}),
		pushedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushed_messages_total",
			Help:      "Local messages merged into the shared log.",
		}),
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Requests to the shared-log service by operation and outcome.",
		}, []string{"op", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_seconds",
			Help:      "Latency of requests to the shared-log service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 while the connectivity monitor is online.",
		}),
		envboxRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envbox",
			Name:      "requests_total",
			Help:      "Requests served by the reference shared-log server.",
		}, []string{"method", "code"}),
		envboxItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "envbox",
			Name:      "stored_items",
			Help:      "Entries stored per environment after the last write.",
		}, []string{"env_id"}),
	}
	m.online.Set(1)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reconcilePasses,
		m.pushedMessages,
		m.remoteRequests,
		m.remoteLatency,
		m.online,
		m.envboxRequests,
		m.envboxItems,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePass(status string, pushed int) {
	if m == nil {
		return
	}
	m.reconcilePasses.WithLabelValues(status).Inc()
	if pushed > 0 {
		m.pushedMessages.Add(float64(pushed))
	}
}

func (m *Metrics) ObserveRemote(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.remoteRequests.WithLabelValues(op, outcome).Inc()
	m.remoteLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.online.Set(1)
	} else {
		m.online.Set(0)
	}
}

func (m *Metrics) ObserveEnvboxRequest(method string, code int) {
	if m == nil {
		return
	}
	m.envboxRequests.WithLabelValues(method, http.StatusText(code)).Inc()
}

func (m *Metrics) SetEnvboxItems(envID string, n int) {
	if m == nil {
		return
	}
	m.envboxItems.WithLabelValues(envID).Set(float64(n))
}
