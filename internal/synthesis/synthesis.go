// Package synthesis implements the Global Synthesizer (§4.7): consumes
// normalized views, detects cross-source coincidences, lead-lag,
// confluence, redundancy and blind spots, derives signal families and
// meta-patterns, and emits doctrine-candidate insights.
package synthesis

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/normalizer"
	"github.com/aristath/sentinel/internal/strand"
)

// Synthesizer runs one synthesis pass per invocation.
type Synthesizer struct {
	strands *strand.Store
	norm    *normalizer.Normalizer
	graph   *ConfluenceGraph
	log     zerolog.Logger
}

// New builds a Synthesizer.
func New(strands *strand.Store, norm *normalizer.Normalizer, log zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		strands: strands,
		norm:    norm,
		graph:   NewConfluenceGraph(),
		log:     log.With().Str("component", "global_synthesizer").Logger(),
	}
}

// Name satisfies scheduler.Job.
func (s *Synthesizer) Name() string { return "global_synthesizer" }

// Run executes one synthesis pass, appending every output as a strand.
func (s *Synthesizer) Run() error {
	views, err := s.norm.Build()
	if err != nil {
		return err
	}

	correlation := CorrelationFrom(views.CrossSource)
	if _, err := s.strands.Append(correlation.ToStrand()); err != nil {
		s.log.Warn().Err(err).Msg("failed to append correlation strand")
	}

	coverage := CoverageAnalysisFrom(views.CrossSource)
	if _, err := s.strands.Append(coverage.ToStrand()); err != nil {
		s.log.Warn().Err(err).Msg("failed to append coverage analysis strand")
	}

	families := SignalFamiliesFrom(views.Historical)
	metaPatterns := MetaPatternsFrom(views.CrossSource, views.MarketContext)

	for _, mp := range metaPatterns {
		if _, err := s.strands.Append(mp.ToStrand()); err != nil {
			s.log.Warn().Err(err).Msg("failed to append meta-pattern strand")
		}
	}

	insights := DoctrineInsightsFrom(families, metaPatterns, correlation)
	for _, insight := range insights {
		if _, err := s.strands.Append(insight.ToStrand()); err != nil {
			s.log.Warn().Err(err).Msg("failed to append doctrine insight strand")
		}
	}

	s.updateConfluenceGraph(views.CrossSource)
	s.graph.Prune(24*time.Hour, 0.3)

	return nil
}

func (s *Synthesizer) updateConfluenceGraph(cs normalizer.CrossSourceView) {
	for _, ev := range cs.ConfluenceEvents {
		s.graph.AddEdge(ev.A.ID, ev.B.ID, ev.Similarity, ev.A.CreatedAt)
	}
}
