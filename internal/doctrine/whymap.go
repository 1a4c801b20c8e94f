package doctrine

// WhyMap accumulates the mechanism hypotheses and evidence conditions
// supporting a doctrine entry (§4.9 "why-map merge"). Keys are free-form
// condition labels (e.g. "regime:trend", "session:ny"); values count how
// many absorbed lessons cited that condition.
type WhyMap map[string]int

// WhyMapDelta is the set of conditions a single lesson contributes.
type WhyMapDelta []string

// Merge folds delta's conditions into the map, incrementing counts for
// conditions already present and adding new ones. Merge never mutates
// its receiver; it returns the merged result.
func (w WhyMap) Merge(delta WhyMapDelta) WhyMap {
	merged := make(WhyMap, len(w)+len(delta))
	for k, v := range w {
		merged[k] = v
	}
	for _, cond := range delta {
		if cond == "" {
			continue
		}
		merged[cond]++
	}
	return merged
}

// Dominant returns the condition with the highest citation count, and
// whether the map is non-empty.
func (w WhyMap) Dominant() (string, bool) {
	var best string
	bestCount := 0
	for k, v := range w {
		if v > bestCount {
			best, bestCount = k, v
		}
	}
	return best, bestCount > 0
}
