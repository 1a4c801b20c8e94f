// Package strand implements the append-only Strand Store: the single
// shared log through which every Central Intelligence Layer engine
// communicates. Engines never share mutable memory directly; they only
// append to and scan this log.
package strand

import "time"

// Kind tags the producer-defined type of a strand.
type Kind string

const (
	KindSignal               Kind = "signal"
	KindPredictionReview     Kind = "prediction_review"
	KindMotif                Kind = "motif"
	KindConfluenceEvent      Kind = "confluence_event"
	KindMetaSignal           Kind = "meta_signal"
	KindExperimentAssignment Kind = "experiment_assignment"
	KindExperimentResult     Kind = "experiment_result"
	KindLesson               Kind = "lesson"
	KindDoctrine             Kind = "doctrine"
	KindCorrelation          Kind = "correlation"
	KindCoverageAnalysis     Kind = "coverage_analysis"
	KindDataQualityNote      Kind = "data_quality_note"
	KindReconciliationNote   Kind = "reconciliation_note"
)

// Direction is the signal's directional bias.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
)

// ClusterKeyEntry records a strand's membership in one orthogonal
// clustering dimension (asset, timeframe, outcome, method, ...), and
// whether that membership has already been consumed into a braid.
type ClusterKeyEntry struct {
	ClusterType string `json:"cluster_type"`
	ClusterKey  string `json:"cluster_key"`
	BraidLevel  int    `json:"braid_level"`
	Consumed    bool   `json:"consumed"`
}

// Strand is an immutable-after-append record: the unit of memory in the
// Central Intelligence Layer.
type Strand struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	SourceID string `json:"source_id"`

	Symbol        string `json:"symbol,omitempty"`
	Timeframe     string `json:"timeframe,omitempty"`
	Regime        string `json:"regime,omitempty"`
	SessionBucket string `json:"session_bucket,omitempty"`

	Tags []string `json:"tags,omitempty"`

	SigSigma      float64   `json:"sig_sigma"`
	SigConfidence float64   `json:"sig_confidence"`
	SigDirection  Direction `json:"sig_direction,omitempty"`

	OutcomeScore float64 `json:"outcome_score"`

	// ModuleIntelligence is a producer-specific free-form payload,
	// msgpack-encoded at rest (see Store.Append).
	ModuleIntelligence map[string]interface{} `json:"module_intelligence,omitempty"`

	ClusterKey []ClusterKeyEntry `json:"cluster_key,omitempty"`
	BraidLevel int               `json:"braid_level"`
	Lesson     string            `json:"lesson,omitempty"`

	// SourceStrandIDs references the level-k members a braid was
	// synthesized from. Empty for BraidLevel == 1.
	SourceStrandIDs []string `json:"source_strand_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClampSignal clamps SigSigma and SigConfidence into [0,1] and reports
// whether a clamp occurred, per §3.1's data-quality note requirement.
func (s *Strand) ClampSignal() (clamped bool) {
	if s.SigSigma < 0 {
		s.SigSigma = 0
		clamped = true
	} else if s.SigSigma > 1 {
		s.SigSigma = 1
		clamped = true
	}
	if s.SigConfidence < 0 {
		s.SigConfidence = 0
		clamped = true
	} else if s.SigConfidence > 1 {
		s.SigConfidence = 1
		clamped = true
	}
	return clamped
}

// ConsumedOn reports whether the given dimension is already consumed.
func (s *Strand) ConsumedOn(clusterType string) bool {
	for _, ck := range s.ClusterKey {
		if ck.ClusterType == clusterType && ck.Consumed {
			return true
		}
	}
	return false
}

// DimensionKey returns the (clusterType, clusterKey, braidLevel) entry for
// a dimension, if present.
func (s *Strand) DimensionKey(clusterType string) (ClusterKeyEntry, bool) {
	for _, ck := range s.ClusterKey {
		if ck.ClusterType == clusterType {
			return ck, true
		}
	}
	return ClusterKeyEntry{}, false
}

// Filter selects a subset of the store for Scan.
type Filter struct {
	Kinds            []Kind
	TagPrefix        string
	SourceID         string
	Symbol           string
	Timeframe        string
	CreatedAfter     time.Time
	CreatedBefore    time.Time
	BraidLevel       int // 0 means "any"
	ClusterType      string
	ConsumedOnDim    *bool // nil means "don't filter on consumed"
	Limit            int
	OrderByCreatedAt string // "asc" or "desc", default "desc"
}

// RollupPatch carries the only fields Store.UpdateRollup may mutate.
type RollupPatch struct {
	OutcomeScore      *float64
	ConsumedPatches   map[string]bool // cluster_type -> consumed
	DoctrineRollup    map[string]interface{}
}
