package metrics

import "github.com/prometheus/client_golang/prometheus"

// MetricsCounter is the counter view handed to packages that must not import prometheus
type MetricsCounter interface {
	Inc()
}

// MetricsWrapper adapts Metrics to the narrow interfaces the ml package and
// the pipeline depend on.
type MetricsWrapper struct {
	m *Metrics
}

// NewWrapper adapts m for the ml package and the pipeline.
func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.MLPredictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.MLLatency.Observe(v)
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	w.m.MLModelAge.Set(v)
}

func (w *MetricsWrapper) MLMissingModelInc(stat string) {
	w.m.MLMissingModels.WithLabelValues(stat).Inc()
}

func (w *MetricsWrapper) MLTrainingsInc(stat string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
		w.m.ErrorsTotal.Inc()
	}
	w.m.MLTrainings.WithLabelValues(stat, result).Inc()
}

func (w *MetricsWrapper) MLTrainingDurationObserve(v float64) {
	w.m.MLTrainingDuration.Observe(v)
}

func (w *MetricsWrapper) GamesCollected() MetricsCounter {
	return &CounterWrapper{w.m.GamesCollected}
}

func (w *MetricsWrapper) CollectErrors() MetricsCounter {
	return &CounterWrapper{w.m.CollectErrors}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}
