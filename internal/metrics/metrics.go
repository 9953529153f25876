// Package metrics provides Prometheus metrics collection for the survival
// prediction service. It defines counters, gauges, and histograms covering
// prediction throughput, model lifecycle, and the HTTP surface, exposed via
// the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter   // Total number of predictions made
	PredictionFailures prometheus.Counter   // Total number of failed prediction calls
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency in seconds
	PredictionScores   prometheus.Histogram // Distribution of survival probabilities
	CacheHits          prometheus.Counter   // Predictions served from the result cache

	// Model lifecycle metrics
	ModelLoadsTotal   prometheus.Counter // Successful model loads
	ModelLoadFailures prometheus.Counter // Failed model loads
	ModelAge          prometheus.Gauge   // Age of the active model artifact in seconds

	// HTTP and streaming metrics
	RequestsTotal prometheus.Counter // HTTP requests handled
	WSClients     prometheus.Gauge   // Connected websocket subscribers

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows isolated metric collection in tests without touching the
// global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions made",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed prediction calls",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_scores",
			Help:    "Distribution of predicted survival probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_hits_total",
			Help: "Predictions served from the result cache",
		}),
		ModelLoadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "model_loads_total",
			Help: "Total number of successful model loads",
		}),
		ModelLoadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "model_load_failures_total",
			Help: "Total number of failed model loads",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the active model artifact in seconds",
		}),
		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests handled",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Number of connected websocket subscribers",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
