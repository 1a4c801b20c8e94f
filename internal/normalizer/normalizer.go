// Package normalizer implements the Input Normalizer (§4.6): it reads
// the recent strand tail and projects it into five structured views the
// Global Synthesizer consumes.
package normalizer

import (
	"time"

	"github.com/aristath/sentinel/internal/strand"
)

// Config tunes the normalizer's lookback windows and thresholds.
type Config struct {
	ProducerWindow       time.Duration // default 24h
	CrossSourceWindow    time.Duration // default 48h
	ConfluenceThreshold  float64       // default 0.7
	LeadLagMin           time.Duration // default 60s
	LeadLagMax           time.Duration // default 3600s
}

// Normalizer reads strands and builds Views.
type Normalizer struct {
	cfg     Config
	strands *strand.Store
}

// New builds a Normalizer, defaulting unset config fields to §4.6/§6.6.
func New(cfg Config, strands *strand.Store) *Normalizer {
	if cfg.ProducerWindow == 0 {
		cfg.ProducerWindow = 24 * time.Hour
	}
	if cfg.CrossSourceWindow == 0 {
		cfg.CrossSourceWindow = 48 * time.Hour
	}
	if cfg.ConfluenceThreshold == 0 {
		cfg.ConfluenceThreshold = 0.7
	}
	if cfg.LeadLagMin == 0 {
		cfg.LeadLagMin = 60 * time.Second
	}
	if cfg.LeadLagMax == 0 {
		cfg.LeadLagMax = 3600 * time.Second
	}
	return &Normalizer{cfg: cfg, strands: strands}
}

// Build reads the current strand tail and produces all five views.
func (n *Normalizer) Build() (Views, error) {
	now := time.Now().UTC()

	producerSignals, err := n.strands.Scan(strand.Filter{
		Kinds:        []strand.Kind{strand.KindSignal, strand.KindMotif},
		CreatedAfter: now.Add(-n.cfg.ProducerWindow),
	})
	if err != nil {
		return Views{}, err
	}

	crossSourceSignals, err := n.strands.Scan(strand.Filter{
		Kinds:        []strand.Kind{strand.KindSignal, strand.KindMotif, strand.KindConfluenceEvent},
		CreatedAfter: now.Add(-n.cfg.CrossSourceWindow),
	})
	if err != nil {
		return Views{}, err
	}

	reviewed, err := n.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindPredictionReview}})
	if err != nil {
		return Views{}, err
	}
	lessons, err := n.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindLesson}})
	if err != nil {
		return Views{}, err
	}
	assignments, err := n.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindExperimentAssignment}})
	if err != nil {
		return Views{}, err
	}
	results, err := n.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindExperimentResult}})
	if err != nil {
		return Views{}, err
	}

	return Views{
		ProducerOutputs: ProducerOutputsFrom(producerSignals),
		CrossSource:     CrossSourceFrom(crossSourceSignals, n.cfg.ConfluenceThreshold, n.cfg.LeadLagMin, n.cfg.LeadLagMax),
		MarketContext:   MarketContextFrom(crossSourceSignals),
		Historical:      HistoricalPerformanceFrom(reviewed, lessons),
		Experiments:      ExperimentRegistryFrom(assignments, results),
	}, nil
}
