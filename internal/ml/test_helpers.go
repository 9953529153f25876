package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu           sync.Mutex
	predictions  int
	failures     int
	latencySum   float64
	cacheHits    int
	loads        int
	loadFailures int
	modelAge     float64
	scores       []float64
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) FailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) ScoreObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, v)
}

func (m *MockMetrics) CacheHitsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) LoadsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *MockMetrics) LoadFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadFailures++
}

// mockScorer is a scripted scorer for tests. It tracks transient buffer
// acquisition so tests can assert nothing stays allocated after a call,
// whether the scripted outcome is success or failure.
type mockScorer struct {
	mu          sync.Mutex
	scoreFn     func(rows [][]float32) ([]float32, error)
	calls       int
	openBuffers int
	closed      bool
}

func (m *mockScorer) Score(rows [][]float32) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.openBuffers++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.openBuffers--
		m.mu.Unlock()
	}()

	return m.scoreFn(rows)
}

func (m *mockScorer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockScorer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockScorer) leakedBuffers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openBuffers
}

// fixedScorer always returns the same probability.
func fixedScorer(prob float32) *mockScorer {
	return &mockScorer{scoreFn: func(rows [][]float32) ([]float32, error) {
		out := make([]float32, len(rows))
		for i := range out {
			out[i] = prob
		}
		return out, nil
	}}
}
