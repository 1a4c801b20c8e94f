package orchestrator

import (
	"fmt"

	"github.com/aristath/sentinel/internal/strand"
)

// IdeasFrom derives §4.8 step 1 idea candidates purely from the recent
// synthesis-output strands (correlation, coverage_analysis, meta_signal,
// doctrine) — the orchestrator never imports the synthesizer directly;
// every cross-component signal flows through the shared strand store.
func IdeasFrom(correlations, coverageAnalyses, metaSignals, doctrineInsights []strand.Strand) []Idea {
	var ideas []Idea

	for _, c := range correlations {
		strength, _ := asFloat(c.ModuleIntelligence["overall_strength"])
		if strength > 0.7 {
			ideas = append(ideas, Idea{
				Trigger:        "cross_source_correlation",
				Rationale:      "sustained cross-source correlation strength",
				SuggestedShape: ShapeDurability,
				Priority:       PriorityHigh,
				PatternFamily:  "SYSTEM",
				PatternID:      "cross_source_correlation",
				Strength:       strength,
			})
		}
	}

	for _, cov := range coverageAnalyses {
		gaps, _ := asFloat(cov.ModuleIntelligence["coverage_gaps"])
		if gaps > 0 {
			ideas = append(ideas, Idea{
				Trigger:        "coverage_gap",
				Rationale:      fmt.Sprintf("%.0f low-activity coverage cells detected", gaps),
				SuggestedShape: ShapeBoundary,
				Priority:       PriorityMedium,
				PatternFamily:  "SYSTEM",
				PatternID:      "coverage_gap",
				Strength:       0.5,
			})
		}
		blindSpots, _ := asFloat(cov.ModuleIntelligence["blind_spots"])
		if blindSpots > 0 {
			ideas = append(ideas, Idea{
				Trigger:        "blind_spot",
				Rationale:      fmt.Sprintf("%.0f known producers silent on otherwise-active cells", blindSpots),
				SuggestedShape: ShapeBoundary,
				Priority:       PriorityHigh,
				PatternFamily:  "SYSTEM",
				PatternID:      "blind_spot",
				Strength:       0.65,
			})
		}
	}

	for _, mp := range metaSignals {
		kind, _ := mp.ModuleIntelligence["meta_pattern_kind"].(string)
		strength, _ := asFloat(mp.ModuleIntelligence["strength"])
		if strength <= 0.6 {
			continue
		}
		shape := ShapeStack
		if kind == "lead_lag" {
			shape = ShapeLeadLag
		}
		ideas = append(ideas, Idea{
			Trigger:        "meta_pattern:" + kind,
			Rationale:      fmt.Sprintf("%v", mp.ModuleIntelligence["description"]),
			SuggestedShape: shape,
			Priority:       PriorityMedium,
			PatternFamily:  kind,
			PatternID:      kind,
			Strength:       strength,
		})
	}

	for _, d := range doctrineInsights {
		reliability, _ := asFloat(d.ModuleIntelligence["reliability_score"])
		if reliability <= 0.75 {
			continue
		}
		family, _ := d.ModuleIntelligence["pattern_family"].(string)
		ideas = append(ideas, Idea{
			Trigger:        "high_confidence_doctrine_insight",
			Rationale:      fmt.Sprintf("%v", d.ModuleIntelligence["recommendation"]),
			SuggestedShape: ShapeDurability,
			Priority:       PriorityHigh,
			PatternFamily:  family,
			PatternID:      family,
			Strength:       reliability,
		})
	}

	return ideas
}

// asFloat coerces a decoded msgpack/JSON numeric value (which may surface
// as float64, float32, or any integer width) into a float64.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// FrameHypothesis applies §4.8 step 2's default framing to an idea.
func FrameHypothesis(idea Idea) Hypothesis {
	return Hypothesis{
		Text:                fmt.Sprintf("%s suggests re-testing %s via a %s experiment", idea.Trigger, idea.PatternFamily, idea.SuggestedShape),
		ExpectedConditions:  []string{idea.Trigger},
		SuccessMetrics:      DefaultSuccessMetrics(),
		TimeHorizon:         DefaultGuardrails().MaxRuntime,
		ConfidenceLevel:     0.6,
		EvidenceBasis:       idea.Rationale,
	}
}

// domainFor maps an idea's trigger/pattern onto the capability-map
// domain vocabulary used for target-source selection.
func domainFor(idea Idea) string {
	switch idea.Trigger {
	case "coverage_gap", "blind_spot", "cross_source_correlation":
		return "price_action"
	default:
		return "indicator_composite"
	}
}
