// Package braid implements the Learning Braid Manager (§4.11):
// progressively synthesizes higher-order strands from lower-order ones
// along orthogonal clustering dimensions, using an external analysis
// function to derive the synthesized lesson.
package braid

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/analysisfn"
	"github.com/aristath/sentinel/internal/strand"
)

// Config tunes the braid threshold and the reviewable kinds it braids.
type Config struct {
	ClusterThreshold int           // N, default 3
	ReviewableKinds  []strand.Kind // default {prediction_review}
	Dimensions       []string      // cluster-type dimensions braided each pass
}

// DefaultConfig returns §4.11 / §6.6's defaults.
func DefaultConfig() Config {
	return Config{
		ClusterThreshold: 3,
		ReviewableKinds:  []strand.Kind{strand.KindPredictionReview},
		Dimensions:       []string{"asset", "timeframe", "pattern_timeframe", "outcome", "method"},
	}
}

// Manager runs one braiding pass per invocation, one cluster dimension at
// a time (§4.11 "Algorithm (per cluster dimension)").
type Manager struct {
	cfg     Config
	strands *strand.Store
	fn      analysisfn.Function
	log     zerolog.Logger
}

// New builds a Manager, defaulting unset Config fields.
func New(cfg Config, strands *strand.Store, fn analysisfn.Function, log zerolog.Logger) *Manager {
	if cfg.ClusterThreshold <= 0 {
		cfg.ClusterThreshold = 3
	}
	if len(cfg.ReviewableKinds) == 0 {
		cfg.ReviewableKinds = []strand.Kind{strand.KindPredictionReview}
	}
	if len(cfg.Dimensions) == 0 {
		cfg.Dimensions = DefaultConfig().Dimensions
	}
	return &Manager{
		cfg:     cfg,
		strands: strands,
		fn:      fn,
		log:     log.With().Str("component", "learning_braid_manager").Logger(),
	}
}

// Name satisfies scheduler.Job.
func (m *Manager) Name() string { return "learning_braid_manager" }

// Run braids every configured dimension once. Each dimension is
// independent — a member strand may be consumed on multiple dimensions,
// never twice on the same one (§4.11 invariants).
func (m *Manager) Run() error {
	for _, dim := range m.cfg.Dimensions {
		if err := m.braidDimension(dim); err != nil {
			m.log.Warn().Err(err).Str("dimension", dim).Msg("braid pass failed for dimension")
		}
	}
	return nil
}

// braidDimension groups not-yet-consumed members by (cluster_key,
// braid_level) on dim and attempts to braid every group with >= N
// members.
func (m *Manager) braidDimension(dim string) error {
	notConsumed := false
	members, err := m.strands.Scan(strand.Filter{
		Kinds:         m.cfg.ReviewableKinds,
		ClusterType:   dim,
		ConsumedOnDim: &notConsumed,
	})
	if err != nil {
		return err
	}

	groups := groupByKeyAndLevel(members, dim)
	for _, group := range groups {
		if len(group) < m.cfg.ClusterThreshold {
			continue
		}
		if err := m.braidGroup(dim, group); err != nil {
			m.log.Warn().Err(err).Str("dimension", dim).Msg("failed to braid group")
		}
	}
	return nil
}

type groupKey struct {
	clusterKey string
	braidLevel int
}

func groupByKeyAndLevel(members []strand.Strand, dim string) map[groupKey][]strand.Strand {
	groups := map[groupKey][]strand.Strand{}
	for _, s := range members {
		entry, ok := s.DimensionKey(dim)
		if !ok {
			continue
		}
		key := groupKey{clusterKey: entry.ClusterKey, braidLevel: entry.BraidLevel}
		groups[key] = append(groups[key], s)
	}
	return groups
}

// braidGroup invokes the analysis function over the group, appends the
// synthesized braid strand, then attempts to CAS-consume every member on
// dim. A member whose CAS fails means another braider already consumed
// it on this dimension; per §4.11 step 2c the whole group is aborted for
// this dimension (the already-appended braid strand is left in place —
// it simply references fewer confirmed members than intended, which is
// why the analysis function's insight, not the member count, is the
// source of truth for what was actually synthesized).
func (m *Manager) braidGroup(dim string, group []strand.Strand) error {
	entryPreview, _ := group[0].DimensionKey(dim)
	input := buildAnalysisContext(group)
	input["dimension"] = dim
	input["member_count"] = len(group)
	input["cluster_key"] = entryPreview.ClusterKey
	input["symbol"] = group[0].Symbol

	result, err := m.fn.Analyze(context.Background(), "braid_synthesis", input)
	if err != nil {
		return fmt.Errorf("analyze braid group: %w", err)
	}
	if result == nil {
		return nil // analysis function declined to produce a result this cycle
	}

	entry, _ := group[0].DimensionKey(dim)
	level := entry.BraidLevel
	if level < 1 {
		level = 1 // an entry without a level belongs to a base (level-1) member
	}
	braid := aggregate(dim, entry.ClusterKey, level, group, result)

	braidID, err := m.strands.Append(braid)
	if err != nil {
		return fmt.Errorf("append braid strand: %w", err)
	}

	for _, member := range group {
		ok, err := m.strands.CASConsume(member.ID, dim)
		if err != nil {
			m.log.Warn().Err(err).Str("strand_id", member.ID).Str("dimension", dim).Msg("failed to CAS-consume braid member")
			continue
		}
		if !ok {
			m.log.Debug().Str("strand_id", member.ID).Str("dimension", dim).Msg("member already consumed on this dimension by another braider, aborting group")
			return nil
		}
	}

	// Recovery pass (§4.1): a member whose CAS attempt above errored (as
	// opposed to losing a race to another braider) is left unconsumed,
	// which would otherwise permanently violate invariant 5. Sweep this
	// braid's own members and flip any still-unconsumed ones now.
	if err := m.strands.ReconcileConsumedFlags(braidID, dim); err != nil {
		m.log.Warn().Err(err).Str("strand_id", braidID).Str("dimension", dim).Msg("failed to reconcile consumed flags for braid")
	}
	return nil
}

func buildAnalysisContext(group []strand.Strand) analysisfn.Context {
	lessons := make([]string, 0, len(group))
	for _, s := range group {
		if s.Lesson != "" {
			lessons = append(lessons, s.Lesson)
		}
	}
	sort.Strings(lessons)
	return analysisfn.Context{"member_lessons": lessons}
}
