package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistry holds the Prometheus metrics exposed on /metrics.
type MetricsRegistry struct {
	registry *prometheus.Registry

	Mutations        *prometheus.CounterVec
	IntranetRequests *prometheus.CounterVec
	SelectedXP       prometheus.Gauge
	TitleComplete    *prometheus.GaugeVec
	RequestDuration  *prometheus.HistogramVec
}

// NewMetricsRegistry creates and registers all simulator metrics.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rncpsim_store_mutations_total",
				Help: "Total progression store mutations by operation",
			},
			[]string{"op"},
		),
		IntranetRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rncpsim_intranet_requests_total",
				Help: "Total intranet fetches by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		SelectedXP: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rncpsim_selected_xp",
				Help: "Current derived XP total",
			},
		),
		TitleComplete: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rncpsim_title_complete",
				Help: "Whether a title's requirements are currently met (0 or 1)",
			},
			[]string{"title"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rncpsim_http_request_duration_seconds",
				Help:    "HTTP request duration by route and status",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"route", "status"},
		),
	}

	m.registry.MustRegister(
		m.Mutations,
		m.IntranetRequests,
		m.SelectedXP,
		m.TitleComplete,
		m.RequestDuration,
	)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
