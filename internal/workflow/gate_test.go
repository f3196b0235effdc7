package workflow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"credit-risk/backend/pkg/models"
)

func uniformEvaluation(score float64) *models.Evaluation {
	return &models.Evaluation{
		Accuracy:     score,
		Completeness: score,
		Structure:    score,
		Verbosity:    score,
		Relevance:    score,
		Tone:         score,
		OverallScore: score,
	}
}

func TestGateDecide(t *testing.T) {
	gate := NewGate(0.8)

	tests := []struct {
		name          string
		score         float64
		iteration     int
		maxIterations int
		want          Decision
	}{
		{"accepts at threshold", 0.8, 0, 5, DecisionAccept},
		{"accepts above threshold", 0.92, 4, 5, DecisionAccept},
		{"continues with budget left", 0.5, 0, 5, DecisionContinue},
		{"exhausts when no round fits", 0.5, 4, 5, DecisionExhausted},
		{"exhausts immediately with zero budget", 0.5, 0, 1, DecisionExhausted},
		{"exhausts for non-positive budget", 0.5, 0, 0, DecisionExhausted},
		{"clamps out of range score low", -3, 0, 5, DecisionContinue},
		{"clamps out of range score high", 42, 0, 5, DecisionAccept},
		{"treats NaN as zero", math.NaN(), 0, 5, DecisionContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.Decide(uniformEvaluation(tt.score), tt.iteration, tt.maxIterations)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateFinalize(t *testing.T) {
	gate := NewGate(0.8)

	t.Run("weighted mean", func(t *testing.T) {
		eval := &models.Evaluation{
			Accuracy:     0.9,
			Completeness: 0.8,
			Structure:    0.7,
			Verbosity:    0.6,
			Relevance:    0.85,
			Tone:         1.0,
		}
		gate.Finalize(eval)
		// 0.9*0.25 + 0.8*0.20 + 0.7*0.15 + 0.6*0.10 + 0.85*0.20 + 1.0*0.10
		assert.Equal(t, 0.82, eval.OverallScore)
		assert.True(t, eval.MeetsThreshold)
	})

	t.Run("clamps dimensions", func(t *testing.T) {
		eval := &models.Evaluation{Accuracy: 7, Completeness: -2, Tone: math.NaN()}
		gate.Finalize(eval)
		assert.Equal(t, 1.0, eval.Accuracy)
		assert.Equal(t, 0.0, eval.Completeness)
		assert.Equal(t, 0.0, eval.Tone)
		assert.GreaterOrEqual(t, eval.OverallScore, 0.0)
		assert.LessOrEqual(t, eval.OverallScore, 1.0)
	})

	t.Run("critique never empty below threshold", func(t *testing.T) {
		eval := uniformEvaluation(0.3)
		gate.Finalize(eval)
		assert.False(t, eval.MeetsThreshold)
		assert.NotEmpty(t, eval.Critique)
	})

	t.Run("rounds to three decimals", func(t *testing.T) {
		eval := uniformEvaluation(0.33333)
		gate.Finalize(eval)
		assert.Equal(t, 0.333, eval.OverallScore)
	})
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "accept", DecisionAccept.String())
	assert.Equal(t, "continue", DecisionContinue.String())
	assert.Equal(t, "exhausted", DecisionExhausted.String())
	assert.Equal(t, "unknown", Decision(99).String())
}
