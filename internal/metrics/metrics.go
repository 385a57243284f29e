// Package metrics exposes transfer and navigation counters for Prometheus.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all gsurf collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Transfers        *prometheus.CounterVec
	TransferDuration *prometheus.HistogramVec
	Redirects        prometheus.Counter
	PinChecks        *prometheus.CounterVec
	Navigations      *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsurf_transfers_total",
				Help: "Resolved transfer sessions by outcome kind",
			},
			[]string{"outcome"},
		),
		TransferDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gsurf_transfer_duration_seconds",
				Help:    "Time from connect to resolution of a transfer session",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		Redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gsurf_redirects_followed_total",
			Help: "Redirect hops followed by navigators",
		}),
		PinChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsurf_pin_checks_total",
				Help: "Certificate pin decisions",
			},
			[]string{"trust"},
		),
		Navigations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsurf_navigations_total",
				Help: "Terminal navigation events by kind",
			},
			[]string{"event"},
		),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gsurf_sessions_active",
			Help: "Transfer sessions currently in flight",
		}),
	}
	reg.MustRegister(
		m.Transfers,
		m.TransferDuration,
		m.Redirects,
		m.PinChecks,
		m.Navigations,
		m.SessionsActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTransfer(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(outcome).Inc()
	m.TransferDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveRedirect() {
	if m == nil {
		return
	}
	m.Redirects.Inc()
}

func (m *Metrics) ObservePin(trust string) {
	if m == nil {
		return
	}
	m.PinChecks.WithLabelValues(trust).Inc()
}

func (m *Metrics) ObserveNavigation(event string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(event).Inc()
}

// SessionStarted increments the active gauge and returns the matching
// decrement.
func (m *Metrics) SessionStarted() func() {
	if m == nil {
		return func() {}
	}
	m.SessionsActive.Inc()
	return m.SessionsActive.Dec
}
