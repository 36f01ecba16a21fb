// Package metrics exposes server counters in the Prometheus text format.
// The serving core does not use net/http, so rendering goes through expfmt
// instead of promhttp.
package metrics

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

// Metrics bundles the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	activeSessions prometheus.Gauge
	activeURLs     prometheus.Gauge
	backupFailures prometheus.Counter
}

// New creates a registry with the request, session and URL collectors plus
// the standard process and Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genoserve_requests_total",
			Help: "Served requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genoserve_active_sessions",
			Help: "Live user sessions.",
		}),
		activeURLs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genoserve_active_urls",
			Help: "Live temporary URLs.",
		}),
		backupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genoserve_backup_failures_total",
			Help: "Snapshot writes that failed on the primary backup target.",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.activeSessions,
		m.activeURLs,
		m.backupFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts one served request.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	if route == "" {
		route = "unknown"
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// SetActiveSessions records the current session count.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// SetActiveURLs records the current temporary-URL count.
func (m *Metrics) SetActiveURLs(n int) {
	m.activeURLs.Set(float64(n))
}

// BackupFailure counts a failed snapshot write.
func (m *Metrics) BackupFailure() {
	m.backupFailures.Inc()
}

// Render gathers all collectors into the Prometheus text exposition format.
func (m *Metrics) Render() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, family); err != nil {
			return nil, fmt.Errorf("encoding metrics: %w", err)
		}
	}
	return buf.Bytes(), nil
}
