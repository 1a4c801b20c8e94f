package normalizer

import "github.com/aristath/sentinel/internal/strand"

// Similarity implements §4.6's strand-similarity rule: the average of
// unit-matches across {symbol, timeframe, regime, session_bucket,
// detection_type}, always over a fixed denominator of 5 — two strands
// both missing the same feature (empty == empty) still count as a match
// on it. A detection_type is read from the producer-scoped tag
// convention "team:member:event" — the "event" segment. If nothing
// matches at all, returns the 0.1 baseline.
func Similarity(a, b strand.Strand) float64 {
	matches := 0

	check := func(x, y string) {
		if x == y {
			matches++
		}
	}

	check(a.Symbol, b.Symbol)
	check(a.Timeframe, b.Timeframe)
	check(a.Regime, b.Regime)
	check(a.SessionBucket, b.SessionBucket)
	check(detectionType(a), detectionType(b))

	if matches == 0 {
		return 0.1
	}
	return float64(matches) / 5.0
}

// detectionType extracts the "event" segment of the first
// "team:member:event" tag, if present.
func detectionType(s strand.Strand) string {
	for _, tag := range s.Tags {
		parts := splitTag(tag)
		if len(parts) == 3 {
			return parts[2]
		}
	}
	return ""
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
	parts = append(parts, tag[start:])
	return parts
}
