package workflow

import (
	"math"

	"credit-risk/backend/pkg/models"
)

// Decision is the quality gate's verdict for one evaluation.
type Decision int

const (
	// DecisionAccept means the draft meets the quality threshold.
	DecisionAccept Decision = iota
	// DecisionContinue means another refine round should run.
	DecisionContinue
	// DecisionExhausted means no refine budget remains.
	DecisionExhausted
)

func (d Decision) String() string {
	switch d {
	case DecisionAccept:
		return "accept"
	case DecisionContinue:
		return "continue"
	case DecisionExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Dimension weights for the overall score. Accuracy and relevance carry the
// most weight in a credit decision.
const (
	weightAccuracy     = 0.25
	weightCompleteness = 0.20
	weightStructure    = 0.15
	weightVerbosity    = 0.10
	weightRelevance    = 0.20
	weightTone         = 0.10
)

// Gate decides whether a draft is accepted, refined again, or the iteration
// budget is exhausted. All methods are pure.
type Gate struct {
	threshold float64
}

// NewGate creates a Gate with the given acceptance threshold.
func NewGate(threshold float64) *Gate {
	return &Gate{threshold: threshold}
}

// Threshold returns the acceptance threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Finalize clamps the dimension scores into [0, 1], computes the weighted
// overall score rounded to three decimals, and sets the threshold flag.
// Critique is guaranteed non-empty for drafts below the threshold.
func (g *Gate) Finalize(eval *models.Evaluation) {
	eval.Accuracy = clamp01(eval.Accuracy)
	eval.Completeness = clamp01(eval.Completeness)
	eval.Structure = clamp01(eval.Structure)
	eval.Verbosity = clamp01(eval.Verbosity)
	eval.Relevance = clamp01(eval.Relevance)
	eval.Tone = clamp01(eval.Tone)

	eval.OverallScore = OverallScore(eval)
	eval.MeetsThreshold = eval.OverallScore >= g.threshold
	if !eval.MeetsThreshold && len(eval.Critique) == 0 {
		eval.Critique = []string{"Overall quality is below the acceptance threshold; strengthen the weakest scoring dimensions"}
	}
}

// Decide maps an evaluation and the current iteration to a gate decision.
// Total: every input yields exactly one of the three outcomes. Iteration
// counts completed refine rounds, so the budget is exhausted as soon as no
// further round fits under maxIterations.
func (g *Gate) Decide(eval *models.Evaluation, iteration, maxIterations int) Decision {
	if clamp01(eval.OverallScore) >= g.threshold {
		return DecisionAccept
	}
	if iteration+1 >= maxIterations {
		return DecisionExhausted
	}
	return DecisionContinue
}

// OverallScore computes the weighted mean of the six dimension scores,
// rounded to three decimals.
func OverallScore(eval *models.Evaluation) float64 {
	score := eval.Accuracy*weightAccuracy +
		eval.Completeness*weightCompleteness +
		eval.Structure*weightStructure +
		eval.Verbosity*weightVerbosity +
		eval.Relevance*weightRelevance +
		eval.Tone*weightTone
	return math.Round(score*1000) / 1000
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
