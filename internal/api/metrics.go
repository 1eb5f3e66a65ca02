package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
)

const (
	sourceAPI      = "api"
	sourceDetector = "detector"

	outcomeSuccess    = "success"
	outcomeError      = "error"
	outcomeSuperseded = "superseded"
)

// Metrics contains the Prometheus collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	classifications *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	actions         *prometheus.CounterVec
	debounceFires   prometheus.Counter
	sessions        prometheus.Gauge
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_classifications_total",
				Help: "Classification requests by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_classification_latency_seconds",
				Help:    "Round trip time of classification requests",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		),
		actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_moderation_actions_total",
				Help: "Moderation actions derived from applied results",
			},
			[]string{"action"},
		),
		debounceFires: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_debounce_fires_total",
				Help: "Quiet periods that elapsed and started a classification",
			},
		),
		sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_detector_sessions",
				Help: "Open live detector sessions",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func (m *Metrics) observeClassification(source, outcome string, took time.Duration) {
	m.classifications.WithLabelValues(source, outcome).Inc()
	if outcome != outcomeError {
		m.latency.WithLabelValues(source).Observe(took.Seconds())
	}
}

func (m *Metrics) observeAction(action moderation.Action) {
	m.actions.WithLabelValues(string(action)).Inc()
}
