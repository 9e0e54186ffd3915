package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/deskops-io/deskops/pkg/ratelimit"
)

// Metrics holds the Prometheus collectors for the API surface.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
	escalations prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry. The rate
// limiter's window occupancy is exported via gauges sampled at scrape
// time.
func NewMetrics(stats func() ratelimit.Stats) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskops_workflow_runs_total",
			Help: "Workflow runs by terminal status",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "deskops_workflow_duration_seconds",
			Help:    "End-to-end workflow run duration",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskops_workflow_escalations_total",
			Help: "Runs handed off to a human operator",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "deskops_ratelimit_requests_in_window",
		Help: "Model calls admitted in the trailing window",
	}, func() float64 { return float64(stats().RequestsInWindow) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "deskops_ratelimit_units_in_window",
		Help: "Usage units consumed in the trailing window",
	}, func() float64 { return float64(stats().UnitsInWindow) })

	return m
}

// ObserveRun records one finished workflow run.
func (m *Metrics) ObserveRun(status string, durationSeconds float64, escalated bool) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(durationSeconds)
	if escalated {
		m.escalations.Inc()
	}
}
