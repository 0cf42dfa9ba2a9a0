package lib

import "testing"

func TestPauseStats(t *testing.T) {
	ps := NewPauseStats(10)

	if ps.Mean() != 0 || ps.Decayed() != 0 || ps.Max() != 0 {
		t.Errorf("empty accumulator not zero valued")
	}

	for _, pause := range []int64{4, 8, 12, 4, 4} {
		ps.Add(pause)
	}
	if x := ps.Samples(); x != 5 {
		t.Errorf("expected 5, got %v", x)
	}
	if x := ps.Total(); x != 32 {
		t.Errorf("expected 32, got %v", x)
	}
	if x := ps.Max(); x != 12 {
		t.Errorf("expected 12, got %v", x)
	}
	if x := ps.Mean(); x != 6 {
		t.Errorf("expected 6, got %v", x)
	}
	if x := ps.Overruns(); x != 1 {
		t.Errorf("expected 1 overrun, got %v", x)
	}
	// seeded at 4, then pulled toward each sample by the decay
	// weight: 4, 5, 6.75, 6.0625, 5.546875
	if x := ps.Decayed(); x != 5 {
		t.Errorf("expected decayed mean 5, got %v", x)
	}

	stats := ps.Stats()
	if x := stats["samples"].(int64); x != 5 {
		t.Errorf("expected 5, got %v", x)
	}
	if x := stats["overruns"].(int64); x != 1 {
		t.Errorf("expected 1, got %v", x)
	}
}

func TestPauseStatsNoBudget(t *testing.T) {
	ps := NewPauseStats(0)
	for i := int64(1); i <= 100; i++ {
		ps.Add(i * 1000)
	}
	if x := ps.Overruns(); x != 0 {
		t.Errorf("overruns counted without a budget: %v", x)
	}
	if x := ps.Mean(); x != 50500 {
		t.Errorf("expected 50500, got %v", x)
	}
}
