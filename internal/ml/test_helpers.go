package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu            sync.Mutex
	predictions   int
	failures      int
	latencySum    float64
	latencyCount  int
	modelAge      float64
	missing       map[string]int
	trainings     map[string]int
	trainFailures map[string]int
	trainDuration float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLMissingModelInc(stat string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missing == nil {
		m.missing = make(map[string]int)
	}
	m.missing[stat]++
}

func (m *MockMetrics) MLTrainingsInc(stat string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trainings == nil {
		m.trainings = make(map[string]int)
		m.trainFailures = make(map[string]int)
	}
	if ok {
		m.trainings[stat]++
	} else {
		m.trainFailures[stat]++
	}
}

func (m *MockMetrics) MLTrainingDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainDuration += v
}
