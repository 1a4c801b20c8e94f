package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/doctrine"
	"github.com/aristath/sentinel/internal/resonance"
	"github.com/aristath/sentinel/internal/strand"
)

// Config bounds queue admission (§4.8 step 6).
type Config struct {
	MaxConcurrentExperiments int     // default 10, global
	MaxExperimentsPerSource  int     // default 3
	ResonanceFamilyCap       float64 // §4.10 family-cap fraction, default 0.30
}

// DefaultConfig returns §6.6's defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentExperiments: 10,
		MaxExperimentsPerSource:  3,
		ResonanceFamilyCap:       resonance.DefaultFamilyCapFraction,
	}
}

// Orchestrator runs one idea-to-assignment pass per invocation (§4.8).
type Orchestrator struct {
	strands      *strand.Store
	doctrine     *doctrine.Store
	capabilities *CapabilityMap
	cfg          Config
	log          zerolog.Logger
}

// New builds an Orchestrator.
func New(strands *strand.Store, doc *doctrine.Store, capabilities *CapabilityMap, cfg Config, log zerolog.Logger) *Orchestrator {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if capabilities == nil {
		capabilities = DefaultCapabilityMap()
	}
	return &Orchestrator{
		strands:      strands,
		doctrine:     doc,
		capabilities: capabilities,
		cfg:          cfg,
		log:          log.With().Str("component", "experiment_orchestrator").Logger(),
	}
}

// Name satisfies scheduler.Job.
func (o *Orchestrator) Name() string { return "experiment_orchestrator" }

// Run executes idea generation through assignment emission, then the
// progress-tracking and result-absorption passes (§4.8).
func (o *Orchestrator) Run() error {
	if err := o.admitNewAssignments(); err != nil {
		return err
	}
	if err := o.trackProgress(); err != nil {
		return err
	}
	return o.absorbResults()
}

func (o *Orchestrator) admitNewAssignments() error {
	now := time.Now().UTC()
	lookback := now.Add(-1 * time.Hour)

	correlations, err := o.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindCorrelation}, CreatedAfter: lookback})
	if err != nil {
		return err
	}
	coverage, err := o.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindCoverageAnalysis}, CreatedAfter: lookback})
	if err != nil {
		return err
	}
	metaSignals, err := o.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindMetaSignal}, CreatedAfter: lookback})
	if err != nil {
		return err
	}
	insights, err := o.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindDoctrine}, CreatedAfter: lookback})
	if err != nil {
		return err
	}

	ideas := IdeasFrom(correlations, coverage, metaSignals, insights)
	if len(ideas) == 0 {
		return nil
	}

	active, err := o.strands.Scan(strand.Filter{
		Kinds: []strand.Kind{strand.KindExperimentAssignment},
	})
	if err != nil {
		return err
	}
	globalActive, perSourceActive := activeCounts(active)

	var gated []Idea
	for _, idea := range ideas {
		allowed, reason, err := o.gate(idea)
		if err != nil {
			o.log.Warn().Err(err).Str("pattern_id", idea.PatternID).Msg("doctrine gate check failed")
			continue
		}
		if !allowed {
			o.log.Info().Str("pattern_id", idea.PatternID).Str("reason", reason).Msg("idea rejected: target is contraindicated")
			continue
		}
		gated = append(gated, idea)
	}

	candidates, byID := o.candidatesFor(gated)
	queueResult := resonance.BuildQueue(candidates, perSourceActive, o.cfg.MaxExperimentsPerSource, o.cfg.ResonanceFamilyCap)
	for _, v := range queueResult.Violations {
		o.log.Debug().Str("candidate", v.CandidateID).Str("reason", v.Reason).Msg("resonance prioritizer deferred candidate")
	}

	for _, c := range queueResult.Queue {
		if globalActive >= o.cfg.MaxConcurrentExperiments {
			o.log.Debug().Msg("global experiment concurrency cap reached; deferring remaining candidates to next cycle")
			break
		}

		idea := byID[c.ID]
		assignment := o.buildAssignment(idea, c.TargetSource)
		if _, err := o.strands.Append(assignmentStrand(assignment)); err != nil {
			o.log.Warn().Err(err).Str("experiment_id", assignment.ExperimentID).Msg("failed to append experiment assignment strand")
			continue
		}
		globalActive++
	}

	return nil
}

// candidatesFor expands each gated idea into one resonance.Candidate per
// capability-map target source (§4.8 step 4), scoring the five §4.10
// dimensions from data already carried on the idea: its own strand
// strength doubles as the pattern and cross-source dimensions (both
// derive from the same synthesis-output strand), per-family doctrine
// success rate feeds the family dimension, idea priority stands in for
// temporal favorability, and context defaults to neutral absent a
// regime/session-scoped idea.
func (o *Orchestrator) candidatesFor(ideas []Idea) ([]resonance.Candidate, map[string]Idea) {
	var candidates []resonance.Candidate
	byID := map[string]Idea{}

	for i, idea := range ideas {
		domain := domainFor(idea)
		targets := o.capabilities.TargetsFor(domain)
		if len(targets) == 0 {
			o.log.Warn().Str("domain", domain).Msg("no registered target source for domain; skipping idea")
			continue
		}

		familyScore := o.familyScore(idea)
		temporalScore := temporalScoreFor(idea.Priority)

		for j, target := range targets {
			id := fmt.Sprintf("idea-%d-%d", i, j)
			byID[id] = idea
			candidates = append(candidates, resonance.Candidate{
				ID:               id,
				Family:           idea.PatternFamily,
				TargetSource:     target,
				PatternScore:     idea.Strength,
				FamilyScore:      familyScore,
				CrossSourceScore: idea.Strength,
				TemporalScore:    temporalScore,
				ContextualScore:  0.5,
			})
		}
	}
	return candidates, byID
}

func (o *Orchestrator) familyScore(idea Idea) float64 {
	entry, found, err := o.doctrine.Get(idea.PatternFamily, idea.PatternID)
	if err != nil || !found {
		return 0.5
	}
	return entry.SuccessRate
}

func temporalScoreFor(p Priority) float64 {
	switch p {
	case PriorityHigh:
		return 1.0
	case PriorityMedium:
		return 0.6
	default:
		return 0.3
	}
}

// gate applies §4.9's contraindication gate: an idea targeting a
// contraindicated pattern is rejected unless it carries a distinct
// mechanism hypothesis.
func (o *Orchestrator) gate(idea Idea) (bool, string, error) {
	contraindicated, err := o.doctrine.IsContraindicated(idea.PatternFamily, idea.PatternID)
	if err != nil {
		return false, "", err
	}
	if !contraindicated {
		return true, "", nil
	}
	if idea.MechanismHypothesis != "" {
		return true, "", nil
	}
	reasons, err := o.doctrine.ContraindicationReasons(idea.PatternFamily, idea.PatternID)
	if err != nil {
		return false, "", err
	}
	if len(reasons) == 0 {
		return false, "pattern is contraindicated", nil
	}
	return false, reasons[0], nil
}

func (o *Orchestrator) buildAssignment(idea Idea, target string) Assignment {
	guardrails := DefaultGuardrails()
	return Assignment{
		ExperimentID:  uuid.NewString(),
		TargetSource:  target,
		Shape:         idea.SuggestedShape,
		PatternFamily: idea.PatternFamily,
		Hypothesis:    FrameHypothesis(idea),
		Parameters:    map[string]interface{}{"priority": string(idea.Priority), "pattern_id": idea.PatternID},
		Guardrails:    guardrails,
		Status:        AssignmentPending,
		Deadline:      time.Now().UTC().Add(guardrails.MaxRuntime),
		CreatedAt:     time.Now().UTC(),
	}
}

func assignmentStrand(a Assignment) strand.Strand {
	return strand.Strand{
		Kind:          strand.KindExperimentAssignment,
		SourceID:      a.TargetSource,
		Symbol:        a.PatternFamily,
		Timeframe:     "system",
		SigConfidence: a.Hypothesis.ConfidenceLevel,
		ModuleIntelligence: map[string]interface{}{
			"experiment_id":   a.ExperimentID,
			"shape":           string(a.Shape),
			"status":          string(a.Status),
			"hypothesis":      a.Hypothesis.Text,
			"time_horizon_s":  a.Hypothesis.TimeHorizon.Seconds(),
			"parameters":      a.Parameters,
			"max_runtime_s":   a.Guardrails.MaxRuntime.Seconds(),
			"min_sample_size": a.Guardrails.MinSampleSize,
			"max_false_positive_rate": a.Guardrails.MaxFalsePositiveRate,
			"min_confidence":  a.Guardrails.MinConfidence,
			"stop_on_anomaly": a.Guardrails.StopOnAnomaly,
			"deadline":        a.Deadline.Format(time.RFC3339),
		},
	}
}

// activeCounts tallies in-flight (pending/active) assignments globally
// and per target source.
func activeCounts(assignments []strand.Strand) (int, map[string]int) {
	global := 0
	perSource := map[string]int{}
	for _, a := range assignments {
		status, _ := a.ModuleIntelligence["status"].(string)
		if status == string(AssignmentPending) || status == string(AssignmentActive) {
			global++
			perSource[a.SourceID]++
		}
	}
	return global, perSource
}

// trackProgress marks assignments past their deadline as timed_out and
// surfaces the outcome as an experiment_result strand (§4.8 "Progress
// tracking", §7).
func (o *Orchestrator) trackProgress() error {
	now := time.Now().UTC()
	open, err := o.strands.Scan(strand.Filter{Kinds: []strand.Kind{strand.KindExperimentAssignment}})
	if err != nil {
		return err
	}

	for _, a := range open {
		status, _ := a.ModuleIntelligence["status"].(string)
		if status != string(AssignmentPending) && status != string(AssignmentActive) {
			continue
		}
		deadlineStr, _ := a.ModuleIntelligence["deadline"].(string)
		deadline, err := time.Parse(time.RFC3339, deadlineStr)
		if err != nil || now.Before(deadline) {
			continue
		}

		patch := strand.RollupPatch{
			DoctrineRollup: map[string]interface{}{"status": string(AssignmentTimedOut), "outcome": "timed_out"},
		}
		if err := o.strands.UpdateRollup(a.ID, patch); err != nil {
			o.log.Warn().Err(err).Str("strand_id", a.ID).Msg("failed to mark experiment assignment timed out")
			continue
		}

		experimentID, _ := a.ModuleIntelligence["experiment_id"].(string)
		result := strand.Strand{
			Kind:            strand.KindExperimentResult,
			SourceID:        a.SourceID,
			Symbol:          a.Symbol,
			Timeframe:       a.Timeframe,
			OutcomeScore:    0,
			SourceStrandIDs: []string{a.ID},
			ClusterKey:      []strand.ClusterKeyEntry{{ClusterType: "orchestrator", Consumed: false}},
			ModuleIntelligence: map[string]interface{}{
				"experiment_id": experimentID,
				"outcome":       "timed_out",
			},
		}
		if _, err := o.strands.Append(result); err != nil {
			o.log.Warn().Err(err).Str("strand_id", a.ID).Msg("failed to append timed-out experiment result strand")
		}
	}
	return nil
}

// absorbResults reads experiment_result strands not yet consumed on the
// "orchestrator" dimension and folds their outcome into a lesson strand
// for doctrine absorption, then marks them consumed.
func (o *Orchestrator) absorbResults() error {
	notConsumed := false
	results, err := o.strands.Scan(strand.Filter{
		Kinds:         []strand.Kind{strand.KindExperimentResult},
		ClusterType:   "orchestrator",
		ConsumedOnDim: &notConsumed,
	})
	if err != nil {
		return err
	}

	for _, r := range results {
		lesson := strand.Strand{
			Kind:          strand.KindLesson,
			SourceID:      "experiment_orchestrator",
			Symbol:        r.Symbol,
			Timeframe:     r.Timeframe,
			Regime:        r.Regime,
			SessionBucket: r.SessionBucket,
			OutcomeScore:  r.OutcomeScore,
			SourceStrandIDs: []string{r.ID},
			ModuleIntelligence: map[string]interface{}{
				"lesson":               fmt.Sprintf("experiment result for %s absorbed into doctrine", r.Symbol),
				"mechanism_hypothesis": r.ModuleIntelligence["mechanism_hypothesis"],
			},
		}
		if _, err := o.strands.Append(lesson); err != nil {
			o.log.Warn().Err(err).Str("strand_id", r.ID).Msg("failed to append lesson from experiment result")
			continue
		}
		if _, err := o.strands.CASConsume(r.ID, "orchestrator"); err != nil {
			o.log.Warn().Err(err).Str("strand_id", r.ID).Msg("failed to mark experiment result consumed")
		}
	}
	return nil
}
