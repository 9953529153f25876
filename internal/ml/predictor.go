// Package ml provides survival prediction over a pretrained binary
// classifier. It covers loading the model artifact, normalizing passenger
// features to the training range, and running single-row inference, with a
// heuristic fallback scorer for when no artifact is available.
package ml

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"titanic-predictor/internal/features"
)

// SurvivalThreshold separates "survives" from "does not survive".
const SurvivalThreshold = 0.5

// MetricsInterface defines the metrics methods needed by the predictor and
// the load manager.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc()
	LatencyObserve(float64)
	ScoreObserve(float64)
	CacheHitsInc()
	ModelAgeSet(float64)
	LoadsInc()
	LoadFailuresInc()
}

// ScorerProvider hands out the active scorer, or an error while no model is
// ready. *Manager is the production implementation.
type ScorerProvider interface {
	Scorer() (Scorer, error)
}

// Prediction is the outcome of one scoring call.
type Prediction struct {
	Probability float64 `json:"probability"`
	Survived    bool    `json:"survived"`
}

// Predictor normalizes passenger inputs and scores them through the active
// model. It holds no mutable state between calls beyond an optional result
// cache, so concurrent predictions are independent.
type Predictor struct {
	provider ScorerProvider
	metrics  MetricsInterface
	cache    *lru.Cache[features.Vector, float64]
}

// NewPredictor creates a predictor. cacheSize <= 0 disables the result
// cache. metrics may be nil.
func NewPredictor(provider ScorerProvider, metrics MetricsInterface, cacheSize int) *Predictor {
	var cache *lru.Cache[features.Vector, float64]
	if cacheSize > 0 {
		cache, _ = lru.New[features.Vector, float64](cacheSize)
	}
	return &Predictor{provider: provider, metrics: metrics, cache: cache}
}

// Predict builds the raw feature vector (absent optional fields score as 0),
// normalizes it against the training bounds, and runs a single-row forward
// pass. A scorer failure or an empty scorer output surfaces as
// *InferenceError; nothing is retried and no partial result escapes.
func (p *Predictor) Predict(in features.PassengerInput) (Prediction, error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	raw := in.Vector()
	if p.cache != nil {
		if prob, ok := p.cache.Get(raw); ok {
			if p.metrics != nil {
				p.metrics.CacheHitsInc()
				p.metrics.PredictionsInc()
			}
			return Prediction{Probability: prob, Survived: prob >= SurvivalThreshold}, nil
		}
	}

	scorer, err := p.provider.Scorer()
	if err != nil {
		return Prediction{}, err
	}

	norm := features.Normalize(raw, features.TrainMin, features.TrainMax)
	out, err := scorer.Score([][]float32{norm.Row()})
	if err != nil {
		if p.metrics != nil {
			p.metrics.FailuresInc()
		}
		return Prediction{}, &InferenceError{Err: err}
	}
	if len(out) == 0 {
		if p.metrics != nil {
			p.metrics.FailuresInc()
		}
		return Prediction{}, &InferenceError{Err: errors.New("scorer returned no output")}
	}

	prob := float64(out[0])
	if p.metrics != nil {
		p.metrics.PredictionsInc()
		p.metrics.ScoreObserve(prob)
	}
	if p.cache != nil {
		p.cache.Add(raw, prob)
	}

	log.Debug().
		Floats64("raw", raw[:]).
		Float64("probability", prob).
		Msg("prediction complete")

	return Prediction{Probability: prob, Survived: prob >= SurvivalThreshold}, nil
}

// InvalidateCache drops all cached results. Hook this to scorer replacement
// so stale probabilities from a previous model are never served.
func (p *Predictor) InvalidateCache() {
	if p.cache != nil {
		p.cache.Purge()
	}
}

// StaticProvider wraps a fixed scorer as a ScorerProvider.
type StaticProvider struct {
	S Scorer
}

func (s StaticProvider) Scorer() (Scorer, error) {
	if s.S == nil {
		return nil, ErrNotReady
	}
	return s.S, nil
}
