package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titanic-predictor/internal/features"
)

func TestFallbackScorer_ProbabilityBounds(t *testing.T) {
	s := FallbackScorer{}

	rows := [][]float32{
		{0, 0, 0, 0, 0, 0},
		{1, 1, 1, 1, 1, 1},
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{2, -1, 3, 0, 0, -2}, // out-of-range normalized inputs still score
	}
	out, err := s.Score(rows)
	require.NoError(t, err)
	require.Len(t, out, len(rows))

	for i, p := range out {
		assert.GreaterOrEqual(t, p, float32(0), "row %d", i)
		assert.LessOrEqual(t, p, float32(1), "row %d", i)
	}
}

func TestFallbackScorer_OrdersKnownPassengers(t *testing.T) {
	s := FallbackScorer{}

	// Normalized vectors: first-class female infant at max fare vs
	// third-class male, age 30, low fare.
	female := features.Normalize(features.Vector{1, 1, 0.42, 0, 0, 512.3292}, features.TrainMin, features.TrainMax)
	male := features.Normalize(features.Vector{3, 0, 30, 0, 0, 7.25}, features.TrainMin, features.TrainMax)

	out, err := s.Score([][]float32{female.Row(), male.Row()})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, out[0], float32(SurvivalThreshold), "first-class female infant should survive")
	assert.Less(t, out[1], float32(SurvivalThreshold), "third-class male should not survive")
	assert.Greater(t, out[0], out[1])
}

func TestFallbackScorer_RowSizeChecked(t *testing.T) {
	s := FallbackScorer{}
	_, err := s.Score([][]float32{{1, 2, 3}})
	require.Error(t, err)
}

func TestFallbackScorer_Deterministic(t *testing.T) {
	s := FallbackScorer{}
	row := []float32{0.7, 1, 0.2, 0.1, 0, 0.05}

	a, err := s.Score([][]float32{row})
	require.NoError(t, err)
	b, err := s.Score([][]float32{row})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
