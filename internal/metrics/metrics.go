// Package metrics provides Prometheus metrics collection for hoopcast.
// It defines and manages the prediction, training, collection and request
// metrics that are exposed via the Prometheus metrics endpoint for monitoring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	MLPredictions   prometheus.Counter     // Total number of per-stat predictions made
	MLFailures      prometheus.Counter     // Total number of per-stat inference failures
	MLMissingModels *prometheus.CounterVec // Predictions skipped because no usable model existed
	MLModelAge      prometheus.Gauge       // Age of the oldest model used by the last prediction
	MLLatency       prometheus.Histogram   // End-to-end prediction latency in seconds

	// Training metrics
	MLTrainings        *prometheus.CounterVec // Training attempts by stat and result
	MLTrainingDuration prometheus.Histogram   // Duration of a single stat fit in seconds

	// Collection metrics
	GamesCollected prometheus.Counter // Total number of game records fetched from the feed
	CollectErrors  prometheus.Counter // Total number of athletes whose collection failed

	// Request metrics
	APIRequests *prometheus.CounterVec // HTTP requests by route and status code

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
// This is the standard way to create metrics for production use.
func New() *Metrics {
	m := NewWithRegistry(prometheus.DefaultRegisterer)
	m.gatherer = prometheus.DefaultGatherer
	return m
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// When registerer is a *prometheus.Registry it is also used for reads.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of per-stat predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of per-stat inference failures",
		}),
		MLMissingModels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_missing_models_total",
			Help: "Predictions skipped because no usable model was available",
		}, []string{"stat"}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the oldest model used by the last prediction in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "ML prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		MLTrainings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_trainings_total",
			Help: "Model training attempts by stat and result",
		}, []string{"stat", "result"}),
		MLTrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_training_duration_seconds",
			Help:    "Duration of a single stat model fit in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		GamesCollected: factory.NewCounter(prometheus.CounterOpts{
			Name: "games_collected_total",
			Help: "Total number of game records fetched from the feed",
		}),
		CollectErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "collect_errors_total",
			Help: "Total number of athletes whose collection failed",
		}),
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Gatherer returns the registry the metrics were registered with, for the
// metrics endpoint.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return m.gatherer
}

// GetFailureRate calculates the share of per-stat predictions that failed at inference.
// Returns 0 if no predictions have been recorded.
func (m *Metrics) GetFailureRate() float64 {
	var predictions, failures float64

	metricFamilies, err := m.Gatherer().Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "ml_predictions_total":
			for _, m := range mf.Metric {
				predictions = m.GetCounter().GetValue()
			}
		case "ml_failures_total":
			for _, m := range mf.Metric {
				failures = m.GetCounter().GetValue()
			}
		}
	}

	// Avoid division by zero
	total := predictions + failures
	if total == 0 {
		return 0
	}
	return failures / total
}
