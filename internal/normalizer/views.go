package normalizer

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/sentinel/internal/strand"
)

// ProducerOutput is one entry of View 1 (§4.6).
type ProducerOutput struct {
	SourceID         string
	DetectionType    string
	Symbol           string
	Timeframe        string
	Regime           string
	SessionBucket    string
	PerformanceTags  []string
	HypothesisNotes  string
	Timestamp        time.Time
	Confidence       float64
	SignalStrength   float64
}

// CoverageCell is one entry of the View 2 coverage map.
type CoverageCell struct {
	Symbol    string
	Timeframe string
	Regime    string
	Session   string
	Producers map[string]bool
	Count     int
}

// ConfluenceEvent pairs two strands within the same 5-minute bucket with
// similarity >= the confluence threshold.
type ConfluenceEvent struct {
	A, B       strand.Strand
	Similarity float64
}

// LeadLagPair is an ordered (lead, lag) source pair.
type LeadLagPair struct {
	LeadSource string
	LagSource  string
	Ratio      float64 // fraction of pairable observations honoring the window
}

// CrossSourceView is View 2.
type CrossSourceView struct {
	DetectionTypeProducers map[string]map[string]bool
	Coverage               []CoverageCell
	ConfluenceEvents       []ConfluenceEvent
	LeadLag                []LeadLagPair
}

// MarketContextView is View 3.
type MarketContextView struct {
	DominantRegime   string
	VolatilityBand   string // low/medium/high
	CorrelationState string // tight/moderate/loose
	ActiveSymbols    int
}

// HistoricalPerformanceView is View 4.
type HistoricalPerformanceView struct {
	PersistentSignals []strand.Strand
	EphemeralSignals  []strand.Strand
	SuccessPatterns   []strand.Strand
	FailedPatterns    []strand.Strand
	Lessons           []strand.Strand
}

// ExperimentRegistryView is View 5.
type ExperimentRegistryView struct {
	Active    []strand.Strand
	Completed []strand.Strand
	Results   []strand.Strand
}

// Views bundles all five normalized views for one synthesis pass.
type Views struct {
	ProducerOutputs []ProducerOutput
	CrossSource     CrossSourceView
	MarketContext   MarketContextView
	Historical      HistoricalPerformanceView
	Experiments     ExperimentRegistryView
}

// ProducerOutputsFrom projects recent signal strands into View 1.
func ProducerOutputsFrom(signals []strand.Strand) []ProducerOutput {
	out := make([]ProducerOutput, 0, len(signals))
	for _, s := range signals {
		out = append(out, ProducerOutput{
			SourceID:        s.SourceID,
			DetectionType:   detectionType(s),
			Symbol:          s.Symbol,
			Timeframe:       s.Timeframe,
			Regime:          s.Regime,
			SessionBucket:   s.SessionBucket,
			PerformanceTags: s.Tags,
			Timestamp:       s.CreatedAt,
			Confidence:      s.SigConfidence,
			SignalStrength:  s.SigSigma,
		})
	}
	return out
}

// CrossSourceFrom computes View 2 over signals, excluding self-pairs from
// the synthesis engine itself (§4.6 self-correlation exclusion) and
// requiring confluenceThreshold similarity within a 5-minute bucket.
func CrossSourceFrom(signals []strand.Strand, confluenceThreshold float64, leadLagMin, leadLagMax time.Duration) CrossSourceView {
	view := CrossSourceView{DetectionTypeProducers: map[string]map[string]bool{}}

	coverage := map[string]*CoverageCell{}
	for _, s := range signals {
		dt := detectionType(s)
		if dt != "" {
			if view.DetectionTypeProducers[dt] == nil {
				view.DetectionTypeProducers[dt] = map[string]bool{}
			}
			view.DetectionTypeProducers[dt][s.SourceID] = true
		}

		key := s.Symbol + "|" + s.Timeframe + "|" + s.Regime + "|" + s.SessionBucket
		cell, ok := coverage[key]
		if !ok {
			cell = &CoverageCell{Symbol: s.Symbol, Timeframe: s.Timeframe, Regime: s.Regime, Session: s.SessionBucket, Producers: map[string]bool{}}
			coverage[key] = cell
		}
		cell.Producers[s.SourceID] = true
		cell.Count++
	}
	for _, cell := range coverage {
		view.Coverage = append(view.Coverage, *cell)
	}

	for i := 0; i < len(signals); i++ {
		for j := i + 1; j < len(signals); j++ {
			a, b := signals[i], signals[j]
			if a.SourceID == "global_synthesizer" && b.SourceID == "global_synthesizer" {
				continue
			}
			if !a.CreatedAt.Truncate(5 * time.Minute).Equal(b.CreatedAt.Truncate(5 * time.Minute)) {
				continue
			}
			sim := Similarity(a, b)
			if sim >= confluenceThreshold {
				view.ConfluenceEvents = append(view.ConfluenceEvents, ConfluenceEvent{A: a, B: b, Similarity: sim})
			}
		}
	}

	view.LeadLag = leadLagPairs(signals, leadLagMin, leadLagMax)
	return view
}

// leadLagPairs finds ordered source pairs where, among strands sharing a
// symbol, the lag source's nearest following strand comes within
// [min, max] after the lead strand for >= 60% of the lead source's
// strands (§4.6).
func leadLagPairs(signals []strand.Strand, min, max time.Duration) []LeadLagPair {
	type key struct{ lead, lag string }
	totals := map[key]int{}
	hits := map[key]int{}

	for i := range signals {
		// gap to the nearest following strand of each other source
		nearest := map[string]time.Duration{}
		for j := range signals {
			if i == j {
				continue
			}
			lead, lag := signals[i], signals[j]
			if lead.Symbol != lag.Symbol || lead.Symbol == "" {
				continue
			}
			if lead.SourceID == lag.SourceID {
				continue
			}
			gap := lag.CreatedAt.Sub(lead.CreatedAt)
			if gap <= 0 {
				continue
			}
			if best, ok := nearest[lag.SourceID]; !ok || gap < best {
				nearest[lag.SourceID] = gap
			}
		}
		for lagSource, gap := range nearest {
			k := key{signals[i].SourceID, lagSource}
			totals[k]++
			if gap >= min && gap <= max {
				hits[k]++
			}
		}
	}

	var out []LeadLagPair
	for k, total := range totals {
		if total == 0 {
			continue
		}
		ratio := float64(hits[k]) / float64(total)
		if ratio >= 0.6 {
			out = append(out, LeadLagPair{LeadSource: k.lead, LagSource: k.lag, Ratio: ratio})
		}
	}
	return out
}

// MarketContextFrom computes View 3 from recent signals.
func MarketContextFrom(signals []strand.Strand) MarketContextView {
	regimeCounts := map[string]int{}
	symbols := map[string]bool{}
	strengths := make([]float64, 0, len(signals))

	for _, s := range signals {
		if s.Regime != "" {
			regimeCounts[s.Regime]++
		}
		if s.Symbol != "" {
			symbols[s.Symbol] = true
		}
		strengths = append(strengths, s.SigSigma)
	}

	dominant := ""
	best := -1
	for regime, count := range regimeCounts {
		if count > best {
			dominant = regime
			best = count
		}
	}

	mean := 0.0
	if len(strengths) > 0 {
		mean = stat.Mean(strengths, nil)
	}
	band := "low"
	switch {
	case mean >= 0.66:
		band = "high"
	case mean >= 0.33:
		band = "medium"
	}

	correlation := "loose"
	switch {
	case len(symbols) <= 3:
		correlation = "tight"
	case len(symbols) <= 10:
		correlation = "moderate"
	}

	return MarketContextView{
		DominantRegime:   dominant,
		VolatilityBand:   band,
		CorrelationState: correlation,
		ActiveSymbols:    len(symbols),
	}
}

// HistoricalPerformanceFrom partitions strands into the five buckets of
// View 4 (§4.6).
func HistoricalPerformanceFrom(reviewed []strand.Strand, lessons []strand.Strand) HistoricalPerformanceView {
	var view HistoricalPerformanceView
	view.Lessons = lessons

	for _, s := range reviewed {
		switch {
		case s.OutcomeScore > 0.6 && s.SigConfidence > 0.5:
			view.SuccessPatterns = append(view.SuccessPatterns, s)
		case s.OutcomeScore < 0.4 || s.SigConfidence < 0.3:
			view.FailedPatterns = append(view.FailedPatterns, s)
		}

		if s.SigSigma >= 0.66 {
			view.PersistentSignals = append(view.PersistentSignals, s)
		} else if s.SigSigma < 0.33 && s.OutcomeScore < 0.5 {
			view.EphemeralSignals = append(view.EphemeralSignals, s)
		}
	}

	return view
}

// ExperimentRegistryFrom computes View 5 from assignment and result strands.
func ExperimentRegistryFrom(assignments, results []strand.Strand) ExperimentRegistryView {
	var view ExperimentRegistryView
	view.Results = results
	for _, a := range assignments {
		status, _ := a.ModuleIntelligence["status"].(string)
		switch status {
		case "active", "pending":
			view.Active = append(view.Active, a)
		case "completed":
			view.Completed = append(view.Completed, a)
		}
	}
	return view
}
