// Package confidence combines detector, domain and extraction scores into the
// final trust score of an import.
package confidence

import (
	"errors"
	"math"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Weights are the linear blend of the three components. They must sum to 1.
type Weights struct {
	Extraction float64
	Detector   float64
	Domain     float64
}

// DefaultWeights favour extraction quality.
var DefaultWeights = Weights{Extraction: 0.7, Detector: 0.1, Domain: 0.2}

// Aggregator computes AggregatedConfidence values.
type Aggregator struct {
	weights   Weights
	aiCeiling float64
}

// New validates the weights and builds an Aggregator.
func New(w Weights, aiCeiling float64) (*Aggregator, error) {
	if w.Extraction < 0 || w.Detector < 0 || w.Domain < 0 {
		return nil, errors.New("confidence weights must be non-negative")
	}
	if math.Abs(w.Extraction+w.Detector+w.Domain-1) > 1e-6 {
		return nil, errors.New("confidence weights must sum to 1")
	}
	if aiCeiling <= 0 || aiCeiling > 1 {
		return nil, errors.New("ai ceiling must be in (0,1]")
	}
	return &Aggregator{weights: w, aiCeiling: aiCeiling}, nil
}

// Aggregate scales the extraction score by a blend of the corroborating
// signals. The result never exceeds the extraction score, the domain ceiling,
// or, for AI-tier results, the AI ceiling. It is non-decreasing in each
// input.
func (a *Aggregator) Aggregate(detector float64, verdict recipe.DomainVerdict, cand recipe.CandidateRecipe) recipe.AggregatedConfidence {
	det := clamp01(detector)
	dom := clamp01(verdict.Weight)
	ext := clamp01(cand.Confidence)

	score := ext * (a.weights.Extraction + a.weights.Detector*det + a.weights.Domain*dom)
	if verdict.Ceiling > 0 {
		score = math.Min(score, verdict.Ceiling)
	}
	if cand.Tier == recipe.TierAI {
		score = math.Min(score, a.aiCeiling)
	}
	return recipe.AggregatedConfidence{
		Score: clamp01(score),
		Tier:  cand.Tier,
		Breakdown: recipe.ConfidenceBreakdown{
			Detector:   det,
			Domain:     dom,
			Extraction: ext,
		},
	}
}

// AutoSave reports whether a score clears the auto-save threshold.
func AutoSave(c recipe.AggregatedConfidence, threshold float64) bool {
	return c.Score >= threshold
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
