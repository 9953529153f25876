package ml

import (
	"fmt"
	"math"

	"titanic-predictor/internal/features"
)

// FallbackScorer is a fixed-coefficient logistic model over the normalized
// feature vector, used when no ONNX artifact is available. Its scores are a
// heuristic approximation of the trained model, not a substitute for it.
type FallbackScorer struct{}

// Coefficients roughly mirror a logistic regression fit on the training set:
// class and age hurt, being female and paying a higher fare help.
var fallbackWeights = [features.VectorSize]float64{-1.9, 2.5, -0.9, -0.4, -0.1, 0.7}

const fallbackBias = 0.2

func (FallbackScorer) Score(rows [][]float32) ([]float32, error) {
	out := make([]float32, len(rows))
	for i, row := range rows {
		if len(row) != features.VectorSize {
			return nil, fmt.Errorf("row %d: expected %d features, got %d", i, features.VectorSize, len(row))
		}
		z := fallbackBias
		for j, w := range fallbackWeights {
			z += w * float64(row[j])
		}
		out[i] = float32(sigmoid(z))
	}
	return out, nil
}

func (FallbackScorer) Close() error { return nil }

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
