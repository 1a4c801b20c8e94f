package collector

import (
	"hash/fnv"
	"math"

	"github.com/aristath/sentinel/internal/position"
)

// Interval computes max(1, ceil(N/B)) minutes — the §4.3 tiered
// scheduling interval for a tracked-set size N under budget B.
func Interval(n, budget int) int {
	if budget <= 0 {
		budget = 1
	}
	interval := int(math.Ceil(float64(n) / float64(budget)))
	if interval < 1 {
		interval = 1
	}
	return interval
}

// CoverageThreshold is the §4.3 monitoring floor: the minimum fraction of
// a cycle's attempted tokens that must succeed for the cycle to be
// considered healthy.
func CoverageThreshold(interval int) float64 {
	switch {
	case interval <= 1:
		return 0.60
	case interval == 2:
		return 0.45
	default:
		t := (60.0/float64(interval) - 2) / 60.0
		if t < 0.20 {
			return 0.20
		}
		return t
	}
}

// TokenHash is a stable hash of a token's chain identity, used by the
// modular scheduling rule.
func TokenHash(tokenContract, chain string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chain + ":" + tokenContract))
	return h.Sum32()
}

// ShouldCollect reports whether token t is scheduled on cycle c, given
// the current interval and whether t is in the priority set (§4.3).
func ShouldCollect(t position.TrackedToken, cycle uint64, interval int, priority map[position.TrackedToken]bool) bool {
	if priority[t] {
		return true
	}
	if interval <= 1 {
		return true
	}
	return uint32(cycle)%uint32(interval) == TokenHash(t.TokenContract, t.Chain)%uint32(interval)
}

// Scheduled returns the subset of tracked that is scheduled for cycle,
// along with how many of them are in the priority set.
func Scheduled(tracked []position.TrackedToken, priority map[position.TrackedToken]bool, cycle uint64, interval int) (scheduled []position.TrackedToken, prioritySubsetCount int) {
	for _, t := range tracked {
		if ShouldCollect(t, cycle, interval, priority) {
			scheduled = append(scheduled, t)
			if priority[t] {
				prioritySubsetCount++
			}
		}
	}
	return scheduled, prioritySubsetCount
}
