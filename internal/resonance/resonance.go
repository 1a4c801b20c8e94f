// Package resonance implements the Resonance Prioritizer (§4.10): ranks
// experiment candidates by a five-dimension weighted score before the
// Orchestrator admits them onto its execution queue.
package resonance

import "math"

// Weights are the §4.10 dimension weights; they sum to 1.0.
const (
	WeightPattern      = 0.30
	WeightFamily       = 0.25
	WeightCrossSource  = 0.20
	WeightTemporal     = 0.15
	WeightContextual   = 0.10
)

// Candidate is one experiment idea awaiting admission, scored across the
// five §4.10 dimensions — each caller-supplied score must already be
// normalized into [0,1].
type Candidate struct {
	ID           string
	Family       string
	TargetSource string

	PatternScore     float64// recent pattern activity / strength
	FamilyScore      float64// per-family historical performance
	CrossSourceScore float64 // cross-source confirming activity
	TemporalScore    float64 // recency / trend favorability
	ContextualScore  float64 // regime/session fit
}

// Resonance returns the weighted-sum overall score for c (§4.10 "Scoring").
func (c Candidate) Resonance() float64 {
	return WeightPattern*clamp01(c.PatternScore) +
		WeightFamily*clamp01(c.FamilyScore) +
		WeightCrossSource*clamp01(c.CrossSourceScore) +
		WeightTemporal*clamp01(c.TemporalScore) +
		WeightContextual*clamp01(c.ContextualScore)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DefaultFamilyCapFraction is §4.10's default family-cap fraction.
const DefaultFamilyCapFraction = 0.30

// FamilyCap is the §4.10 family-cap formula: ceil(countInFamily *
// fraction), floor 1. fraction <= 0 falls back to the §4.10 default.
func FamilyCap(countInFamily int, fraction float64) int {
	if fraction <= 0 {
		fraction = DefaultFamilyCapFraction
	}
	limit := int(math.Ceil(float64(countInFamily) * fraction))
	if limit < 1 {
		return 1
	}
	return limit
}
