package braid

import (
	"github.com/aristath/sentinel/internal/analysisfn"
	"github.com/aristath/sentinel/internal/strand"
)

// aggregate builds the level-(braidLevel+1) strand from a consumed
// group (§4.11 step 2b): success by majority vote, confidence/strength
// by mean, method (the member part of a team:member:event tag) by
// majority, referencing every
// member and carrying the new cluster-key tuple unconsumed.
func aggregate(dim, clusterKey string, braidLevel int, group []strand.Strand, result *analysisfn.Result) strand.Strand {
	successes := 0
	var sigmaSum, confidenceSum, outcomeSum float64
	methodVotes := map[string]int{}
	sourceIDs := make([]string, 0, len(group))
	symbol, timeframe, regime, session := "", "", "", ""

	for _, m := range group {
		if m.OutcomeScore > 0.5 {
			successes++
		}
		sigmaSum += m.SigSigma
		confidenceSum += m.SigConfidence
		outcomeSum += m.OutcomeScore
		methodVotes[methodOf(m)]++
		sourceIDs = append(sourceIDs, m.ID)

		if symbol == "" {
			symbol = m.Symbol
		}
		if timeframe == "" {
			timeframe = m.Timeframe
		}
		if regime == "" {
			regime = m.Regime
		}
		if session == "" {
			session = m.SessionBucket
		}
	}

	n := float64(len(group))
	majoritySuccess := successes*2 > len(group)
	outcomeScore := outcomeSum / n
	if majoritySuccess {
		outcomeScore = max(outcomeScore, 0.6)
	}

	lesson := "synthesized lesson unavailable"
	if text, ok := result.String("lesson"); ok {
		lesson = text
	}

	moduleIntelligence := map[string]interface{}{
		"majority_success":   majoritySuccess,
		"member_count":       len(group),
		"dominant_method":    majorityMethod(methodVotes),
		"mechanism_hypothesis": result.Fields["mechanism_hypothesis"],
	}
	for k, v := range result.Fields {
		if k == "lesson" {
			continue
		}
		moduleIntelligence[k] = v
	}

	return strand.Strand{
		Kind:          strand.KindPredictionReview,
		SourceID:      "learning_braid_manager",
		Symbol:        symbol,
		Timeframe:     timeframe,
		Regime:        regime,
		SessionBucket: session,
		SigSigma:      sigmaSum / n,
		SigConfidence: confidenceSum / n,
		OutcomeScore:  outcomeScore,
		Lesson:        lesson,
		SourceStrandIDs: sourceIDs,
		BraidLevel:    braidLevel + 1,
		ClusterKey: []strand.ClusterKeyEntry{
			{ClusterType: dim, ClusterKey: clusterKey, BraidLevel: braidLevel + 1, Consumed: false},
		},
		ModuleIntelligence: moduleIntelligence,
	}
}

func methodOf(s strand.Strand) string {
	for _, tag := range s.Tags {
		parts := splitTag(tag)
		if len(parts) == 3 {
			return parts[1] // team:member:event -> member is the producing method
		}
	}
	return string(s.Kind)
}

func splitTag(tag string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(tag); i++ {
		if tag[i] == ':' {
			parts = append(parts, tag[start:i])
			start = i + 1
		}
	}
	return append(parts, tag[start:])
}

func majorityMethod(votes map[string]int) string {
	best, bestCount := "", 0
	for method, count := range votes {
		if count > bestCount {
			best, bestCount = method, count
		}
	}
	return best
}
