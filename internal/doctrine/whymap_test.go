package doctrine

import "testing"

func TestMerge_IncrementsExistingAndAddsNew(t *testing.T) {
	w := WhyMap{"regime:trend": 2}
	merged := w.Merge(WhyMapDelta{"regime:trend", "session:ny"})

	if merged["regime:trend"] != 3 {
		t.Errorf("regime:trend = %d, want 3", merged["regime:trend"])
	}
	if merged["session:ny"] != 1 {
		t.Errorf("session:ny = %d, want 1", merged["session:ny"])
	}
	if len(w) != 1 {
		t.Error("Merge must not mutate the receiver")
	}
}

func TestMerge_SkipsEmptyConditions(t *testing.T) {
	w := WhyMap{}
	merged := w.Merge(WhyMapDelta{""})
	if len(merged) != 0 {
		t.Errorf("expected empty conditions to be skipped, got %v", merged)
	}
}

func TestDominant_ReturnsHighestCount(t *testing.T) {
	w := WhyMap{"a": 1, "b": 5, "c": 3}
	best, ok := w.Dominant()
	if !ok || best != "b" {
		t.Errorf("Dominant() = (%q, %v), want (\"b\", true)", best, ok)
	}
}

func TestDominant_FalseWhenEmpty(t *testing.T) {
	w := WhyMap{}
	_, ok := w.Dominant()
	if ok {
		t.Error("expected Dominant() to report false for empty map")
	}
}
