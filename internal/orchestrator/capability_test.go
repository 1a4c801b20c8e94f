package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegister_DeduplicatesAndSorts(t *testing.T) {
	c := NewCapabilityMap()
	c.Register("b_source", "volume")
	c.Register("a_source", "volume")
	c.Register("a_source", "volume") // duplicate registration is a no-op

	assert.Equal(t, []string{"a_source", "b_source"}, c.TargetsFor("volume"))
}

func TestDomains_ReturnsSourceDomains(t *testing.T) {
	c := NewCapabilityMap()
	c.Register("source1", "volume", "price_action")

	assert.ElementsMatch(t, []string{"volume", "price_action"}, c.Domains("source1"))
}

func TestTargetsFor_EmptyForUnknownDomain(t *testing.T) {
	c := NewCapabilityMap()
	assert.Empty(t, c.TargetsFor("nonexistent"))
}

func TestDefaultCapabilityMap_RegistersSpecExamples(t *testing.T) {
	c := DefaultCapabilityMap()
	assert.Contains(t, c.TargetsFor("divergence"), "raw_data_intelligence")
	assert.Contains(t, c.TargetsFor("indicator_composite"), "indicator_producer")
}
