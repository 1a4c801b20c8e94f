package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/sentinel/internal/strand"
)

func TestIdeasFrom_CorrelationAboveThreshold(t *testing.T) {
	correlations := []strand.Strand{
		{ModuleIntelligence: map[string]interface{}{"overall_strength": 0.8}},
	}
	ideas := IdeasFrom(correlations, nil, nil, nil)
	require := assert.New(t)
	require.Len(ideas, 1)
	require.Equal("cross_source_correlation", ideas[0].Trigger)
	require.Equal(ShapeDurability, ideas[0].SuggestedShape)
	require.Equal(PriorityHigh, ideas[0].Priority)
}

func TestIdeasFrom_CorrelationBelowThresholdSkipped(t *testing.T) {
	correlations := []strand.Strand{
		{ModuleIntelligence: map[string]interface{}{"overall_strength": 0.5}},
	}
	assert.Empty(t, IdeasFrom(correlations, nil, nil, nil))
}

func TestIdeasFrom_CoverageGapsAndBlindSpots(t *testing.T) {
	coverage := []strand.Strand{
		{ModuleIntelligence: map[string]interface{}{"coverage_gaps": 2, "blind_spots": 1}},
	}
	ideas := IdeasFrom(nil, coverage, nil, nil)
	assert.Len(t, ideas, 2)

	var triggers []string
	for _, i := range ideas {
		triggers = append(triggers, i.Trigger)
	}
	assert.ElementsMatch(t, []string{"coverage_gap", "blind_spot"}, triggers)
}

func TestIdeasFrom_MetaPatternLeadLagShapesDistinctFromOthers(t *testing.T) {
	metaSignals := []strand.Strand{
		{ModuleIntelligence: map[string]interface{}{"meta_pattern_kind": "lead_lag", "strength": 0.7}},
		{ModuleIntelligence: map[string]interface{}{"meta_pattern_kind": "confluence", "strength": 0.7}},
		{ModuleIntelligence: map[string]interface{}{"meta_pattern_kind": "confluence", "strength": 0.5}}, // below threshold
	}
	ideas := IdeasFrom(nil, nil, metaSignals, nil)
	assert.Len(t, ideas, 2)
	assert.Equal(t, ShapeLeadLag, ideas[0].SuggestedShape)
	assert.Equal(t, ShapeStack, ideas[1].SuggestedShape)
}

func TestIdeasFrom_DoctrineInsightAboveThreshold(t *testing.T) {
	doctrineInsights := []strand.Strand{
		{ModuleIntelligence: map[string]interface{}{"reliability_score": 0.9, "pattern_family": "breakout"}},
		{ModuleIntelligence: map[string]interface{}{"reliability_score": 0.5, "pattern_family": "reversal"}},
	}
	ideas := IdeasFrom(nil, nil, nil, doctrineInsights)
	assert.Len(t, ideas, 1)
	assert.Equal(t, "breakout", ideas[0].PatternFamily)
	assert.Equal(t, PriorityHigh, ideas[0].Priority)
}

func TestAsFloat_CoercesNumericTypes(t *testing.T) {
	cases := []interface{}{float64(1), float32(1), int(1), int32(1), int64(1), uint(1), uint64(1)}
	for _, c := range cases {
		v, ok := asFloat(c)
		assert.True(t, ok)
		assert.Equal(t, 1.0, v)
	}

	_, ok := asFloat("not a number")
	assert.False(t, ok)
}

func TestFrameHypothesis_CarriesIdeaFields(t *testing.T) {
	idea := Idea{Trigger: "coverage_gap", PatternFamily: "SYSTEM", SuggestedShape: ShapeBoundary, Rationale: "2 cells"}
	h := FrameHypothesis(idea)
	assert.Contains(t, h.Text, "coverage_gap")
	assert.Contains(t, h.Text, "boundary")
	assert.Equal(t, "2 cells", h.EvidenceBasis)
	assert.Equal(t, DefaultSuccessMetrics(), h.SuccessMetrics)
}

func TestDomainFor_MapsTriggersToDomains(t *testing.T) {
	assert.Equal(t, "price_action", domainFor(Idea{Trigger: "coverage_gap"}))
	assert.Equal(t, "price_action", domainFor(Idea{Trigger: "blind_spot"}))
	assert.Equal(t, "price_action", domainFor(Idea{Trigger: "cross_source_correlation"}))
	assert.Equal(t, "indicator_composite", domainFor(Idea{Trigger: "meta_pattern:confluence"}))
}
