package collector

import (
	"testing"

	"github.com/aristath/sentinel/internal/position"
	"github.com/stretchr/testify/assert"
)

func TestInterval_CeilsAndFloorsAtOne(t *testing.T) {
	assert.Equal(t, 1, Interval(10, 100))
	assert.Equal(t, 2, Interval(101, 100))
	assert.Equal(t, 1, Interval(0, 100))
	assert.Equal(t, 1, Interval(10, 0), "non-positive budget defaults to 1")
}

func TestCoverageThreshold_Tiers(t *testing.T) {
	assert.Equal(t, 0.60, CoverageThreshold(1))
	assert.Equal(t, 0.45, CoverageThreshold(2))
	assert.InDelta(t, 0.20, CoverageThreshold(100), 1e-9, "floors at 0.20")
}

func TestTokenHash_StableForSameInput(t *testing.T) {
	a := TokenHash("0xabc", "eth")
	b := TokenHash("0xabc", "eth")
	assert.Equal(t, a, b)
}

func TestShouldCollect_AlwaysTrueForPriorityOrIntervalOne(t *testing.T) {
	tok := position.TrackedToken{TokenContract: "0xabc", Chain: "eth"}
	priority := map[position.TrackedToken]bool{tok: true}

	assert.True(t, ShouldCollect(tok, 1, 5, priority))
	assert.True(t, ShouldCollect(tok, 1, 1, nil))
}

func TestScheduled_CountsPrioritySubset(t *testing.T) {
	tracked := []position.TrackedToken{
		{TokenContract: "0xabc", Chain: "eth"},
		{TokenContract: "0xdef", Chain: "eth"},
	}
	priority := map[position.TrackedToken]bool{tracked[0]: true}

	scheduled, prioritySubsetCount := Scheduled(tracked, priority, 1, 1)
	assert.Len(t, scheduled, 2)
	assert.Equal(t, 1, prioritySubsetCount)
}
