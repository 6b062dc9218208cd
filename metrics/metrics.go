// Package metrics exposes Prometheus counters for ghost ping detection,
// alert delivery and configuration dialogs.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ghostping"

type Metrics struct {
	registry   *prometheus.Registry
	detections *prometheus.CounterVec
	alerts     *prometheus.CounterVec
	dialogs    *prometheus.CounterVec
}

// New builds the collectors on a private registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Ghost pings detected, by mention category.",
		}, []string{"category"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Ghost ping alerts by delivery result.",
		}, []string{"result"}),
		dialogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogs_total",
			Help:      "Configuration dialogs by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.detections,
		m.alerts,
		m.dialogs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Detection(category string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(category).Inc()
}

func (m *Metrics) Alert(result string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(result).Inc()
}

func (m *Metrics) Dialog(outcome string) {
	if m == nil {
		return
	}
	m.dialogs.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
