package metrics

// Wrapper adapts Metrics to the narrow interface the ml package consumes,
// avoiding an import cycle between ml and metrics.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc() { w.m.PredictionsTotal.Inc() }

func (w *Wrapper) FailuresInc() { w.m.PredictionFailures.Inc() }

func (w *Wrapper) LatencyObserve(v float64) { w.m.PredictionLatency.Observe(v) }

func (w *Wrapper) ScoreObserve(v float64) { w.m.PredictionScores.Observe(v) }

func (w *Wrapper) CacheHitsInc() { w.m.CacheHits.Inc() }

func (w *Wrapper) ModelAgeSet(v float64) { w.m.ModelAge.Set(v) }

func (w *Wrapper) LoadsInc() { w.m.ModelLoadsTotal.Inc() }

func (w *Wrapper) LoadFailuresInc() { w.m.ModelLoadFailures.Inc() }
