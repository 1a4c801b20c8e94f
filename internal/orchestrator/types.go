// Package orchestrator implements the Experiment Orchestrator (§4.8):
// converts synthesis output into concrete experiment assignments, tracks
// their progress, and absorbs results back into the system.
package orchestrator

import "time"

// Shape is an experiment's structural form (§4.8 step 3).
type Shape string

const (
	ShapeDurability Shape = "durability" // single family across multiple contexts
	ShapeStack      Shape = "stack"      // A∧B confluence
	ShapeLeadLag    Shape = "lead_lag"
	ShapeAblation   Shape = "ablation" // remove a feature
	ShapeBoundary   Shape = "boundary" // locate failure surface
)

// Priority is an idea's urgency (§4.8 step 1).
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Idea is a candidate experiment derived from synthesis output (§4.8 step 1).
type Idea struct {
	Trigger       string
	Rationale     string
	SuggestedShape Shape
	Priority      Priority
	PatternFamily string
	PatternID     string
	MechanismHypothesis string // non-empty when proposing around a contraindicated pattern

	// Strength is the originating strand's own score (correlation
	// overall_strength, meta-pattern strength, doctrine reliability_score),
	// carried through as the resonance prioritizer's pattern/cross-source
	// dimension input.
	Strength float64
}

// SuccessMetrics are the default targets an experiment is judged against.
type SuccessMetrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// DefaultSuccessMetrics returns §4.8 step 2's defaults.
func DefaultSuccessMetrics() SuccessMetrics {
	return SuccessMetrics{Accuracy: 0.8, Precision: 0.7, Recall: 0.7, F1: 0.7}
}

// Hypothesis is the framed form of an Idea (§4.8 step 2).
type Hypothesis struct {
	Text              string
	ExpectedConditions []string
	SuccessMetrics     SuccessMetrics
	TimeHorizon        time.Duration
	ConfidenceLevel    float64
	EvidenceBasis      string
}

// Guardrails bound an experiment's execution (§4.8 step 5).
type Guardrails struct {
	MaxRuntime          time.Duration
	MinSampleSize        int
	MaxFalsePositiveRate float64
	MinConfidence        float64
	StopOnAnomaly        bool
}

// DefaultGuardrails returns §4.8 step 5 / §6.6's defaults.
func DefaultGuardrails() Guardrails {
	return Guardrails{
		MaxRuntime:           24 * time.Hour,
		MinSampleSize:        10,
		MaxFalsePositiveRate: 0.3,
		MinConfidence:        0.6,
		StopOnAnomaly:        true,
	}
}

// AssignmentStatus tracks an assignment's lifecycle.
type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentActive   AssignmentStatus = "active"
	AssignmentTimedOut AssignmentStatus = "timed_out"
	AssignmentComplete AssignmentStatus = "complete"
)

// Assignment is one (experiment, target source) pairing (§4.8 step 7).
type Assignment struct {
	ExperimentID   string
	TargetSource   string
	Shape          Shape
	PatternFamily  string
	Hypothesis     Hypothesis
	Parameters     map[string]interface{}
	Guardrails     Guardrails
	Status         AssignmentStatus
	Deadline       time.Time
	CreatedAt      time.Time
}
