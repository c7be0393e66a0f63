package cacheredis

import (
	"testing"
	"time"
)

func TestTTLConfigJitteredStaysWithinRange(t *testing.T) {
	cfg := TTLConfig{JitterMinPct: -5, JitterMaxPct: 5}
	base := 1000 * time.Second
	minWant := base - base*5/100
	maxWant := base + base*5/100

	for i := 0; i < 200; i++ {
		got := cfg.jittered(base)
		if got < minWant || got > maxWant {
			t.Fatalf("jittered(%v) = %v, want within [%v,%v]", base, got, minWant, maxWant)
		}
	}
}

func TestTTLConfigJitteredZeroBaseStaysZero(t *testing.T) {
	cfg := TTLConfig{JitterMinPct: -5, JitterMaxPct: 5}
	if got := cfg.jittered(0); got != 0 {
		t.Fatalf("jittered(0) = %v, want 0", got)
	}
}
