package domain

import (
	"testing"
	"time"
)

// TestCreditLazyRegen exercises property 7 and scenario S6 (spec.md §8).
func TestCreditLazyRegen(t *testing.T) {
	cfg := CreditConfig{MaxCharges: 30, CooldownSeconds: 60}
	now := time.Now()
	balance := CreditBalance{Available: 0, UpdatedAt: now.Add(-180 * time.Second)}

	spent, err := balance.Spend(cfg, now, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spent.Available != 0 {
		t.Fatalf("expected 0 remaining after spending regenerated 3, got %d", spent.Available)
	}

	_, err = spent.Spend(cfg, now, 1)
	var insufficient *InsufficientCreditsError
	if err == nil {
		t.Fatalf("expected InsufficientCreditsError")
	}
	if !asInsufficient(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if insufficient.Required != 1 || insufficient.Available != 0 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}
}

func asInsufficient(err error, target **InsufficientCreditsError) bool {
	if ic, ok := err.(*InsufficientCreditsError); ok {
		*target = ic
		return true
	}
	return false
}

func TestCreditClampsAtMax(t *testing.T) {
	cfg := CreditConfig{MaxCharges: 5, CooldownSeconds: 10}
	now := time.Now()
	balance := CreditBalance{Available: 0, UpdatedAt: now.Add(-1000 * time.Second)}
	regenerated := balance.Regenerate(cfg, now)
	if regenerated.Available != 5 {
		t.Fatalf("expected clamp at 5, got %d", regenerated.Available)
	}
}

func TestSecondsUntilNextCharge(t *testing.T) {
	cfg := CreditConfig{MaxCharges: 10, CooldownSeconds: 60}
	now := time.Now()
	balance := CreditBalance{Available: 0, UpdatedAt: now.Add(-30 * time.Second)}
	if got := balance.SecondsUntilNextCharge(cfg, now); got != 30 {
		t.Fatalf("expected 30s remaining, got %d", got)
	}
}
