package braid

import "github.com/aristath/sentinel/internal/strand"

// DefaultContextDepth is K, the default cap on recent braids folded into a
// new prediction's analysis context (§4.11 "Context injection").
const DefaultContextDepth = 5

// contextDimensions are the dimensions derivable from a prediction before
// its outcome is known — outcome itself is excluded, since a fresh
// prediction has none yet.
var contextDimensions = []string{"asset", "timeframe", "pattern_timeframe", "method"}

// ContextFor retrieves up to k recent braids (braid_level >= 2) whose
// cluster-key on dim matches the key derived from ctx, for use as
// read-only background on a new base-level prediction's analysis. It
// never mutates or consumes the braids it returns.
func (m *Manager) ContextFor(ctx strand.Strand, dim string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultContextDepth
	}
	key, ok := clusterKeyFor(dim, ctx)
	if !ok {
		return nil, nil
	}

	candidates, err := m.strands.Scan(strand.Filter{
		Kinds:            m.cfg.ReviewableKinds,
		ClusterType:      dim,
		OrderByCreatedAt: "desc",
	})
	if err != nil {
		return nil, err
	}

	var lessons []string
	for _, s := range candidates {
		if s.BraidLevel < 2 || s.Lesson == "" {
			continue
		}
		entry, ok := s.DimensionKey(dim)
		if !ok || entry.ClusterKey != key {
			continue
		}
		lessons = append(lessons, s.Lesson)
		if len(lessons) >= k {
			break
		}
	}
	return lessons, nil
}

// AllContext gathers context across every configured dimension that ctx
// carries a derivable key for, deduplicating lessons that recur across
// dimensions.
func (m *Manager) AllContext(ctx strand.Strand, k int) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, dim := range contextDimensions {
		lessons, err := m.ContextFor(ctx, dim, k)
		if err != nil {
			return nil, err
		}
		for _, l := range lessons {
			if seen[l] {
				continue
			}
			seen[l] = true
			out = append(out, l)
		}
	}
	return out, nil
}

// clusterKeyFor derives the dimension key a fresh (unbraided) prediction
// would carry, mirroring the key a braid on that dimension was synthesized
// under — so a new prediction's context can be matched against it without
// the prediction itself ever being clustered yet.
func clusterKeyFor(dim string, s strand.Strand) (string, bool) {
	switch dim {
	case "asset":
		if s.Symbol == "" {
			return "", false
		}
		return s.Symbol, true
	case "timeframe":
		if s.Timeframe == "" {
			return "", false
		}
		return s.Timeframe, true
	case "pattern_timeframe":
		if s.Symbol == "" || s.Timeframe == "" {
			return "", false
		}
		return s.Symbol + "|" + s.Timeframe, true
	case "method":
		method := methodOf(s)
		if method == "" {
			return "", false
		}
		return method, true
	default:
		return "", false
	}
}
