package doctrine

import (
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/strand"
)

const clusterDimension = "doctrine"

// CurationJob runs the Doctrine Keeper's periodic pass (§4.9): absorb new
// lessons, update per-entry statuses, identify newly contraindicated
// patterns, and log promotions/retirements. It satisfies scheduler.Job.
type CurationJob struct {
	strands    *strand.Store
	doctrine   *Store
	thresholds Thresholds
	log        zerolog.Logger
}

// NewCurationJob builds a CurationJob with the given thresholds, falling
// back to DefaultThresholds when the zero value is passed.
func NewCurationJob(strands *strand.Store, doctrine *Store, thresholds Thresholds, log zerolog.Logger) *CurationJob {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &CurationJob{
		strands:    strands,
		doctrine:   doctrine,
		thresholds: thresholds,
		log:        log.With().Str("component", "doctrine_keeper").Logger(),
	}
}

// Name satisfies scheduler.Job.
func (j *CurationJob) Name() string { return "doctrine_curation" }

// Run executes the four curation phases in sequence.
func (j *CurationJob) Run() error {
	before, err := j.doctrine.All()
	if err != nil {
		return err
	}
	beforeStatus := map[string]Status{}
	for _, e := range before {
		beforeStatus[e.DoctrineID] = e.Status
	}

	if err := j.processNewLessons(); err != nil {
		return err
	}

	after, err := j.doctrine.All()
	if err != nil {
		return err
	}
	j.identifyContraindicated(after)
	j.logTransitions(beforeStatus, after)

	return nil
}

// processNewLessons absorbs every lesson strand not yet consumed on the
// "doctrine" dimension, applying each to its target entry and flipping
// the dimension via CAS so a crashed pass can resume idempotently.
func (j *CurationJob) processNewLessons() error {
	notConsumed := false
	lessons, err := j.strands.Scan(strand.Filter{
		Kinds:         []strand.Kind{strand.KindLesson},
		ClusterType:   clusterDimension,
		ConsumedOnDim: &notConsumed,
	})
	if err != nil {
		return err
	}

	for _, lesson := range lessons {
		patternType, patternID, success, delta, ok := extractPattern(lesson)
		if !ok {
			continue
		}
		if _, err := j.doctrine.ApplyLesson(patternType, patternID, success, delta, j.thresholds); err != nil {
			j.log.Warn().Err(err).Str("pattern_type", patternType).Str("pattern_id", patternID).Msg("failed to apply lesson to doctrine entry")
			continue
		}
		if _, err := j.strands.CASConsume(lesson.ID, clusterDimension); err != nil {
			j.log.Warn().Err(err).Str("strand_id", lesson.ID).Msg("failed to mark lesson consumed")
		}
	}
	return nil
}

// extractPattern derives a lesson's target doctrine key from its cluster
// key dimensions, falling back to its tags (team:member:event convention)
// and symbol when the dimension isn't present.
func extractPattern(s strand.Strand) (patternType, patternID string, success bool, delta WhyMapDelta, ok bool) {
	if entry, found := s.DimensionKey("pattern"); found && entry.ClusterKey != "" {
		patternType = entry.ClusterType
		patternID = entry.ClusterKey
	} else {
		patternType = tagDetectionType(s)
		patternID = s.Symbol
	}
	if patternType == "" || patternID == "" {
		return "", "", false, nil, false
	}

	success = s.OutcomeScore > 0.5

	for k, v := range s.ModuleIntelligence {
		if str, okStr := v.(string); okStr && k != "lesson" {
			delta = append(delta, str)
		}
	}
	if s.Regime != "" {
		delta = append(delta, "regime:"+s.Regime)
	}
	if s.SessionBucket != "" {
		delta = append(delta, "session:"+s.SessionBucket)
	}

	return patternType, patternID, success, delta, true
}

func tagDetectionType(s strand.Strand) string {
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

// identifyContraindicated stamps a default reason onto entries that just
// crossed into contraindicated status without one recorded yet.
func (j *CurationJob) identifyContraindicated(entries []Entry) {
	for _, e := range entries {
		if e.Status != StatusContraindicated || len(e.Contraindications) > 0 {
			continue
		}
		reason, hasReason := e.WhyMap.Dominant()
		if !hasReason {
			reason = "failure rate exceeded contraindication threshold"
		}
		e.Contraindications = []string{reason}
		if _, err := j.doctrine.casUpsert(e, e.EvidenceCount, false); err != nil {
			j.log.Warn().Err(err).Str("doctrine_id", e.DoctrineID).Msg("failed to stamp contraindication reason")
		}
	}
}

func (j *CurationJob) logTransitions(before map[string]Status, after []Entry) {
	for _, e := range after {
		prev, existed := before[e.DoctrineID]
		if existed && prev == e.Status {
			continue
		}
		j.log.Info().
			Str("doctrine_id", e.DoctrineID).
			Str("pattern_type", e.PatternType).
			Str("pattern_id", e.PatternID).
			Str("from", string(prev)).
			Str("to", string(e.Status)).
			Int("evidence_count", e.EvidenceCount).
			Msg("doctrine status transition")
	}
}
