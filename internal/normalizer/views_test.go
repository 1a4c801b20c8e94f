package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/sentinel/internal/strand"
)

func TestProducerOutputsFrom_ProjectsFields(t *testing.T) {
	signals := []strand.Strand{
		{SourceID: "s1", Symbol: "BTC", SigConfidence: 0.8, SigSigma: 0.5},
	}
	out := ProducerOutputsFrom(signals)
	if assert.Len(t, out, 1) {
		assert.Equal(t, "s1", out[0].SourceID)
		assert.Equal(t, "BTC", out[0].Symbol)
		assert.Equal(t, 0.8, out[0].Confidence)
	}
}

func TestCrossSourceFrom_ExcludesSynthesizerSelfPairs(t *testing.T) {
	now := time.Now()
	signals := []strand.Strand{
		{SourceID: "global_synthesizer", Symbol: "BTC", CreatedAt: now},
		{SourceID: "global_synthesizer", Symbol: "BTC", CreatedAt: now.Add(time.Minute)},
	}
	view := CrossSourceFrom(signals, 0.5, time.Second, time.Hour)
	assert.Empty(t, view.ConfluenceEvents)
}

func TestCrossSourceFrom_DetectsConfluenceWithinWindow(t *testing.T) {
	now := time.Now().Truncate(5 * time.Minute)
	signals := []strand.Strand{
		{SourceID: "a", Symbol: "BTC", Timeframe: "1h", CreatedAt: now},
		{SourceID: "b", Symbol: "BTC", Timeframe: "1h", CreatedAt: now.Add(time.Minute)},
	}
	view := CrossSourceFrom(signals, 0.5, time.Second, time.Hour)
	assert.Len(t, view.ConfluenceEvents, 1)
}

func TestCrossSourceFrom_SkipsPairsOutsideFiveMinuteBucket(t *testing.T) {
	now := time.Now()
	signals := []strand.Strand{
		{SourceID: "a", Symbol: "BTC", CreatedAt: now},
		{SourceID: "b", Symbol: "BTC", CreatedAt: now.Add(10 * time.Minute)},
	}
	view := CrossSourceFrom(signals, 0.5, time.Second, time.Hour)
	assert.Empty(t, view.ConfluenceEvents)
}

func TestCrossSourceFrom_LeadLagDetectsOrderedPair(t *testing.T) {
	now := time.Now()
	var signals []strand.Strand
	for i := 0; i < 5; i++ {
		base := now.Add(time.Duration(i) * time.Hour)
		signals = append(signals,
			strand.Strand{SourceID: "lead", Symbol: "BTC", CreatedAt: base},
			strand.Strand{SourceID: "lag", Symbol: "BTC", CreatedAt: base.Add(90 * time.Second)},
		)
	}
	view := CrossSourceFrom(signals, 1.1, 60*time.Second, 3600*time.Second)
	found := false
	for _, p := range view.LeadLag {
		if p.LeadSource == "lead" && p.LagSource == "lag" {
			found = true
		}
	}
	assert.True(t, found, "expected lead->lag pair to be detected")
}

func TestMarketContextFrom_PicksDominantRegimeAndVolatilityBand(t *testing.T) {
	signals := []strand.Strand{
		{Symbol: "BTC", Regime: "trend", SigSigma: 0.9},
		{Symbol: "BTC", Regime: "trend", SigSigma: 0.9},
		{Symbol: "ETH", Regime: "range", SigSigma: 0.1},
	}
	view := MarketContextFrom(signals)
	assert.Equal(t, "trend", view.DominantRegime)
	assert.Equal(t, 2, view.ActiveSymbols)
}

func TestHistoricalPerformanceFrom_ClassifiesSuccessAndFailure(t *testing.T) {
	reviewed := []strand.Strand{
		{OutcomeScore: 0.8, SigConfidence: 0.7, SigSigma: 0.7},
		{OutcomeScore: 0.1, SigConfidence: 0.9, SigSigma: 0.1},
	}
	view := HistoricalPerformanceFrom(reviewed, nil)
	assert.Len(t, view.SuccessPatterns, 1)
	assert.Len(t, view.FailedPatterns, 1)
	assert.Len(t, view.PersistentSignals, 1)
	assert.Len(t, view.EphemeralSignals, 1)
}

func TestExperimentRegistryFrom_PartitionsByStatus(t *testing.T) {
	assignments := []strand.Strand{
		{ModuleIntelligence: map[string]interface{}{"status": "active"}},
		{ModuleIntelligence: map[string]interface{}{"status": "completed"}},
	}
	view := ExperimentRegistryFrom(assignments, nil)
	assert.Len(t, view.Active, 1)
	assert.Len(t, view.Completed, 1)
}
