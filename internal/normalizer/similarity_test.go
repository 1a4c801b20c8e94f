package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/sentinel/internal/strand"
)

func TestSimilarity_IdenticalFeaturesScoreOne(t *testing.T) {
	a := strand.Strand{Symbol: "BTC", Timeframe: "1h", Regime: "trend", SessionBucket: "ny"}
	b := strand.Strand{Symbol: "BTC", Timeframe: "1h", Regime: "trend", SessionBucket: "ny"}
	assert.Equal(t, 1.0, Similarity(a, b))
}

func TestSimilarity_BothEmptyMatchesOnEveryFeature(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(strand.Strand{}, strand.Strand{}))
}

func TestSimilarity_PartialMatch(t *testing.T) {
	// symbol, regime, session, and detection_type all match (the latter
	// three by both sides being empty); only timeframe differs.
	a := strand.Strand{Symbol: "BTC", Timeframe: "1h"}
	b := strand.Strand{Symbol: "BTC", Timeframe: "4h"}
	assert.Equal(t, 0.8, Similarity(a, b))
}

func TestSimilarity_UsesDetectionTypeFromTag(t *testing.T) {
	a := strand.Strand{Tags: []string{"teamA:member1:breakout"}}
	b := strand.Strand{Tags: []string{"teamB:member2:breakout"}}
	assert.Equal(t, 1.0, Similarity(a, b))
}

func TestSimilarity_NoMatchesReturnsBaseline(t *testing.T) {
	a := strand.Strand{Symbol: "BTC", Timeframe: "1h", Regime: "trend", SessionBucket: "ny", Tags: []string{"teamA:member1:breakout"}}
	b := strand.Strand{Symbol: "ETH", Timeframe: "4h", Regime: "chop", SessionBucket: "london", Tags: []string{"teamB:member2:reversal"}}
	assert.Equal(t, 0.1, Similarity(a, b))
}
