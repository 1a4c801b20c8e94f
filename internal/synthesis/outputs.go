package synthesis

import (
	"math"
	"sort"

	"github.com/aristath/sentinel/internal/normalizer"
	"github.com/aristath/sentinel/internal/strand"
)

// Correlation is the §4.7 cross-source correlation output.
type Correlation struct {
	Coincidences    int
	LeadLagCount    int
	ConfluenceCount int
	OverallStrength float64
	Confidence      float64
}

// CorrelationFrom computes overall_strength as the weighted mean
// (coincidence 0.3, lead-lag 0.4, confluence 0.3) over per-class means,
// each class's count (distinct detection types, lead-lag pairs,
// confluence events) mapped onto [0,1] by classMean.
func CorrelationFrom(cs normalizer.CrossSourceView) Correlation {
	coincidenceMean := classMean(len(cs.DetectionTypeProducers))
	leadLagMean := classMean(len(cs.LeadLag))
	confluenceMean := classMean(len(cs.ConfluenceEvents))

	overall := 0.3*coincidenceMean + 0.4*leadLagMean + 0.3*confluenceMean
	confidence := overall // confidence mirrors strength absent per-class variance data

	return Correlation{
		Coincidences:    len(cs.DetectionTypeProducers),
		LeadLagCount:    len(cs.LeadLag),
		ConfluenceCount: len(cs.ConfluenceEvents),
		OverallStrength: overall,
		Confidence:      confidence,
	}
}

// classMean maps a raw count onto [0,1] via a saturating curve: 0 counts
// as 0, and the score approaches 1 as count grows past ~10.
func classMean(count int) float64 {
	if count <= 0 {
		return 0
	}
	return 1 - math.Exp(-float64(count)/10.0)
}

// ToStrand converts Correlation to a kind-correlation strand.
func (c Correlation) ToStrand() strand.Strand {
	return strand.Strand{
		Kind:          strand.KindCorrelation,
		SourceID:      "global_synthesizer",
		Symbol:        "SYSTEM",
		Timeframe:     "system",
		SigSigma:      c.OverallStrength,
		SigConfidence: c.Confidence,
		ModuleIntelligence: map[string]interface{}{
			"coincidences":     c.Coincidences,
			"lead_lag":         c.LeadLagCount,
			"confluence_events": c.ConfluenceCount,
			"overall_strength": c.OverallStrength,
			"confidence":       c.Confidence,
		},
	}
}

// CoverageAnalysis is the §4.7 coverage-analysis output.
type CoverageAnalysis struct {
	RedundantAreas  []normalizer.CoverageCell
	BlindSpots      []string
	CoverageGaps    []normalizer.CoverageCell
	CoverageScore   float64
	Efficiency      float64
}

// CoverageAnalysisFrom computes redundant areas (>=3 producers and >=10
// detections), coverage gaps (low activity), blind spots (a known
// producer active elsewhere but absent from an otherwise-active cell,
// priority-scored by that cell's detection count), coverage score
// (fraction of observed grid cells with any activity relative to
// itself, since the expected grid isn't separately enumerated here),
// and efficiency.
func CoverageAnalysisFrom(cs normalizer.CrossSourceView) CoverageAnalysis {
	var redundant, gaps []normalizer.CoverageCell
	var redundancyLoss int

	for _, cell := range cs.Coverage {
		if len(cell.Producers) >= 3 && cell.Count >= 10 {
			redundant = append(redundant, cell)
			redundancyLoss += cell.Count - 10
		} else if cell.Count < 3 {
			gaps = append(gaps, cell)
		}
	}

	coverageScore := 0.0
	if len(cs.Coverage) > 0 {
		active := 0
		for _, cell := range cs.Coverage {
			if cell.Count > 0 {
				active++
			}
		}
		coverageScore = float64(active) / float64(len(cs.Coverage))
	}

	totalProducers := 0
	seen := map[string]bool{}
	for _, cell := range cs.Coverage {
		for p := range cell.Producers {
			if !seen[p] {
				seen[p] = true
				totalProducers++
			}
		}
	}
	efficiency := 1.0
	if totalProducers > 0 {
		efficiency = 1 - float64(redundancyLoss)/float64(totalProducers)
	}

	return CoverageAnalysis{
		RedundantAreas: redundant,
		BlindSpots:     blindSpotsFrom(cs),
		CoverageGaps:   gaps,
		CoverageScore:  coverageScore,
		Efficiency:     efficiency,
	}
}

// blindSpotsFrom flags (producer, cell) pairs where a producer known to
// detect elsewhere in the grid is silent on a cell other producers are
// actively covering — the absence is the signal, not a raw activity
// count, so it can't be read off normalizer.CoverageCell directly.
// Results are ordered by the cell's total detection count descending, so
// the highest-traffic blind spots surface first.
func blindSpotsFrom(cs normalizer.CrossSourceView) []string {
	knownProducers := map[string]bool{}
	for _, producers := range cs.DetectionTypeProducers {
		for p := range producers {
			knownProducers[p] = true
		}
	}
	if len(knownProducers) < 2 {
		return nil // nothing to be "absent" relative to
	}

	type spot struct {
		label string
		count int
	}
	var spots []spot
	for _, cell := range cs.Coverage {
		if cell.Count == 0 {
			continue
		}
		for producer := range knownProducers {
			if cell.Producers[producer] {
				continue
			}
			spots = append(spots, spot{
				label: producer + " absent from " + cell.Symbol + "|" + cell.Timeframe + "|" + cell.Regime + "|" + cell.Session,
				count: cell.Count,
			})
		}
	}

	sort.Slice(spots, func(i, j int) bool { return spots[i].count > spots[j].count })

	out := make([]string, 0, len(spots))
	for _, s := range spots {
		out = append(out, s.label)
	}
	return out
}

// ToStrand converts CoverageAnalysis to a kind-coverage_analysis strand.
func (c CoverageAnalysis) ToStrand() strand.Strand {
	return strand.Strand{
		Kind:      strand.KindCoverageAnalysis,
		SourceID:  "global_synthesizer",
		Symbol:    "SYSTEM",
		Timeframe: "system",
		SigSigma:  c.CoverageScore,
		ModuleIntelligence: map[string]interface{}{
			"redundant_areas": len(c.RedundantAreas),
			"coverage_gaps":   len(c.CoverageGaps),
			"blind_spots":     len(c.BlindSpots),
			"top_blind_spots": topN(c.BlindSpots, 5),
			"coverage_score":  c.CoverageScore,
			"efficiency":      c.Efficiency,
		},
	}
}

func topN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// EvolutionTrend classifies a family's recent trajectory.
type EvolutionTrend string

const (
	TrendImproving      EvolutionTrend = "improving"
	TrendStable         EvolutionTrend = "stable"
	TrendDeclining       EvolutionTrend = "declining"
	TrendInsufficientData EvolutionTrend = "insufficient_data"
)

// SignalFamily is one per-pattern-type partition from §4.7.
type SignalFamily struct {
	PatternType       string
	SuccessRate       float64
	RegimePerformance map[string]float64
	SessionPerformance map[string]float64
	EvolutionTrend    EvolutionTrend
	FamilyStrength    float64
}

// SignalFamiliesFrom partitions historical strands by pattern type
// (detection_type tag) and scores each family (§4.7 family strength).
func SignalFamiliesFrom(hist normalizer.HistoricalPerformanceView) []SignalFamily {
	all := append(append([]strand.Strand{}, hist.SuccessPatterns...), hist.FailedPatterns...)
	byType := map[string][]strand.Strand{}
	for _, s := range all {
		key := patternType(s)
		byType[key] = append(byType[key], s)
	}

	var families []SignalFamily
	for patternType, members := range byType {
		if patternType == "" {
			continue
		}
		families = append(families, scoreFamily(patternType, members))
	}
	return families
}

func patternType(s strand.Strand) string {
	for _, tag := range s.Tags {
		parts := splitTag(tag)
		if len(parts) == 3 {
			return parts[2]
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

func scoreFamily(patternType string, members []strand.Strand) SignalFamily {
	regimeBuckets := map[string][]float64{}
	sessionBuckets := map[string][]float64{}
	successes := 0

	for _, m := range members {
		if m.OutcomeScore > 0.6 {
			successes++
		}
		if m.Regime != "" {
			regimeBuckets[m.Regime] = append(regimeBuckets[m.Regime], m.OutcomeScore)
		}
		if m.SessionBucket != "" {
			sessionBuckets[m.SessionBucket] = append(sessionBuckets[m.SessionBucket], m.OutcomeScore)
		}
	}

	successRate := 0.0
	if len(members) > 0 {
		successRate = float64(successes) / float64(len(members))
	}

	regimePerf := bucketMeans(regimeBuckets)
	sessionPerf := bucketMeans(sessionBuckets)
	regimeConsistency := consistency(regimePerf)
	sessionConsistency := consistency(sessionPerf)

	strength := 0.6*successRate + 0.2*regimeConsistency + 0.2*sessionConsistency

	return SignalFamily{
		PatternType:        patternType,
		SuccessRate:        successRate,
		RegimePerformance:  regimePerf,
		SessionPerformance: sessionPerf,
		EvolutionTrend:     trendFor(members),
		FamilyStrength:     strength,
	}
}

func bucketMeans(buckets map[string][]float64) map[string]float64 {
	out := map[string]float64{}
	for k, vals := range buckets {
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		out[k] = sum / float64(len(vals))
	}
	return out
}

// consistency is 1 - (max - min) across buckets; 1.0 when fewer than two
// buckets exist (nothing to disagree).
func consistency(buckets map[string]float64) float64 {
	if len(buckets) < 2 {
		return 1.0
	}
	max, min := math.Inf(-1), math.Inf(1)
	for _, v := range buckets {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return 1 - (max - min)
}

func trendFor(members []strand.Strand) EvolutionTrend {
	if len(members) < 4 {
		return TrendInsufficientData
	}
	half := len(members) / 2
	firstHalf, secondHalf := 0.0, 0.0
	for _, m := range members[:half] {
		firstHalf += m.OutcomeScore
	}
	for _, m := range members[half:] {
		secondHalf += m.OutcomeScore
	}
	firstHalf /= float64(half)
	secondHalf /= float64(len(members) - half)

	switch {
	case secondHalf-firstHalf > 0.1:
		return TrendImproving
	case firstHalf-secondHalf > 0.1:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// MetaPattern is a §4.7 derived pattern with strength/persistence/novelty.
type MetaPattern struct {
	Kind        string // "confluence", "lead_lag", "regime"
	Description string
	Strength    float64
	Persistence float64
	Novelty     float64
}

// ToStrand converts a MetaPattern to a kind-meta_signal strand.
func (mp MetaPattern) ToStrand() strand.Strand {
	return strand.Strand{
		Kind:      strand.KindMetaSignal,
		SourceID:  "global_synthesizer",
		Symbol:    "SYSTEM",
		Timeframe: "system",
		SigSigma:  mp.Strength,
		ModuleIntelligence: map[string]interface{}{
			"meta_pattern_kind": mp.Kind,
			"description":       mp.Description,
			"strength":          mp.Strength,
			"persistence":       mp.Persistence,
			"novelty":           mp.Novelty,
		},
	}
}

// MetaPatternsFrom derives confluence-based, lead-lag-based, and
// regime-specific meta-patterns (§4.7).
func MetaPatternsFrom(cs normalizer.CrossSourceView, mc normalizer.MarketContextView) []MetaPattern {
	var out []MetaPattern

	if len(cs.ConfluenceEvents) > 0 {
		out = append(out, MetaPattern{
			Kind:        "confluence",
			Description: "repeated cross-source confluence activity",
			Strength:    classMean(len(cs.ConfluenceEvents)),
			Persistence: classMean(len(cs.ConfluenceEvents) / 2),
			Novelty:     0.5,
		})
	}
	if len(cs.LeadLag) > 0 {
		out = append(out, MetaPattern{
			Kind:        "lead_lag",
			Description: "stable lead-lag relationship among producers",
			Strength:    classMean(len(cs.LeadLag)),
			Persistence: classMean(len(cs.LeadLag)),
			Novelty:     0.4,
		})
	}
	if mc.DominantRegime != "" {
		out = append(out, MetaPattern{
			Kind:        "regime",
			Description: "dominant regime " + mc.DominantRegime + " with " + mc.VolatilityBand + " volatility",
			Strength:    0.5,
			Persistence: 0.5,
			Novelty:     0.3,
		})
	}

	return out
}

// DoctrineInsight is a §4.7 doctrine-candidate insight.
type DoctrineInsight struct {
	InsightType      string
	PatternFamily    string
	Conditions       map[string]interface{}
	ReliabilityScore float64
	EvidenceCount    int
	Recommendation   string
	ConfidenceLevel  float64
}

// ToStrand converts a DoctrineInsight to a kind-doctrine strand.
func (d DoctrineInsight) ToStrand() strand.Strand {
	return strand.Strand{
		Kind:          strand.KindDoctrine,
		SourceID:      "global_synthesizer",
		Symbol:        d.PatternFamily,
		Timeframe:     "system",
		SigSigma:      d.ReliabilityScore,
		SigConfidence: d.ConfidenceLevel,
		ModuleIntelligence: map[string]interface{}{
			"insight_type":      d.InsightType,
			"pattern_family":    d.PatternFamily,
			"conditions":        d.Conditions,
			"reliability_score": d.ReliabilityScore,
			"evidence_count":    d.EvidenceCount,
			"recommendation":    d.Recommendation,
		},
	}
}

// DoctrineInsightsFrom emits an insight for every family with
// family_strength > 0.6, meta-pattern with strength > 0.75, and
// correlation with overall_strength > 0.7 (§4.7).
func DoctrineInsightsFrom(families []SignalFamily, metaPatterns []MetaPattern, correlation Correlation) []DoctrineInsight {
	var out []DoctrineInsight

	for _, f := range families {
		if f.FamilyStrength > 0.6 {
			out = append(out, DoctrineInsight{
				InsightType:      "family_performance",
				PatternFamily:    f.PatternType,
				Conditions:       map[string]interface{}{"evolution_trend": string(f.EvolutionTrend)},
				ReliabilityScore: f.FamilyStrength,
				Recommendation:   "continue allocating experiments to " + f.PatternType,
				ConfidenceLevel:  f.SuccessRate,
			})
		}
	}

	for _, mp := range metaPatterns {
		if mp.Strength > 0.75 {
			out = append(out, DoctrineInsight{
				InsightType:      "meta_pattern",
				PatternFamily:    mp.Kind,
				Conditions:       map[string]interface{}{"description": mp.Description},
				ReliabilityScore: mp.Strength,
				Recommendation:   "investigate " + mp.Kind + " pattern further",
				ConfidenceLevel:  mp.Persistence,
			})
		}
	}

	if correlation.OverallStrength > 0.7 {
		out = append(out, DoctrineInsight{
			InsightType:      "cross_source_correlation",
			PatternFamily:    "SYSTEM",
			Conditions:       map[string]interface{}{"confluence_events": correlation.ConfluenceCount},
			ReliabilityScore: correlation.OverallStrength,
			Recommendation:   "raise resonance weight for cross-source confirmed signals",
			ConfidenceLevel:  correlation.Confidence,
		})
	}

	return out
}
