package strand

import "testing"

func TestClampSignal_ClampsOutOfRangeValues(t *testing.T) {
	s := Strand{SigSigma: 1.5, SigConfidence: -0.2}
	clamped := s.ClampSignal()

	if !clamped {
		t.Fatal("expected clamp to report true")
	}
	if s.SigSigma != 1 {
		t.Errorf("SigSigma = %v, want 1", s.SigSigma)
	}
	if s.SigConfidence != 0 {
		t.Errorf("SigConfidence = %v, want 0", s.SigConfidence)
	}
}

func TestClampSignal_NoOpWithinRange(t *testing.T) {
	s := Strand{SigSigma: 0.4, SigConfidence: 0.6}
	if s.ClampSignal() {
		t.Fatal("expected no clamp for in-range values")
	}
}

func TestConsumedOn_TrueOnlyWhenFlagSet(t *testing.T) {
	s := Strand{ClusterKey: []ClusterKeyEntry{
		{ClusterType: "asset", Consumed: true},
		{ClusterType: "timeframe", Consumed: false},
	}}
	if !s.ConsumedOn("asset") {
		t.Error("expected asset dimension to be consumed")
	}
	if s.ConsumedOn("timeframe") {
		t.Error("expected timeframe dimension to be unconsumed")
	}
	if s.ConsumedOn("missing") {
		t.Error("expected missing dimension to report unconsumed")
	}
}

func TestDimensionKey_ReturnsEntryAndPresence(t *testing.T) {
	s := Strand{ClusterKey: []ClusterKeyEntry{
		{ClusterType: "asset", ClusterKey: "BTC", BraidLevel: 2},
	}}
	entry, ok := s.DimensionKey("asset")
	if !ok {
		t.Fatal("expected asset dimension to be found")
	}
	if entry.ClusterKey != "BTC" || entry.BraidLevel != 2 {
		t.Errorf("unexpected entry: %+v", entry)
	}

	_, ok = s.DimensionKey("missing")
	if ok {
		t.Error("expected missing dimension to report absent")
	}
}
