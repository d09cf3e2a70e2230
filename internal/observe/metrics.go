// Package observe holds the metrics and tracing plumbing for the engine.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
// Pass to components that need to record metrics.
type Metrics struct {
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	StateKeys          prometheus.Gauge
	DecodeFallbacks    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "evaluations_total",
				Help:      "Total rule evaluations by kind and result",
			},
			[]string{"kind", "result"}, // result=pass/deny
		),
		EvaluationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "actiongate",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of full rule-set evaluations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"}, // outcome=allow/deny
		),
		StateKeys: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "actiongate",
				Name:      "state_keys",
				Help:      "Number of tracked state scope keys",
			},
		),
		DecodeFallbacks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "decode_fallbacks_total",
				Help:      "Total rule decodes that degraded to an empty config",
			},
		),
	}
}
