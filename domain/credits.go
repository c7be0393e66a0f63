package domain

import "time"

// CreditConfig holds the two knobs the ledger regenerates against
// (spec.md §3, §4.K).
type CreditConfig struct {
	MaxCharges      int
	CooldownSeconds int64
}

// CreditBalance is a user's persisted paint-credit state. The displayed
// balance is never written directly by a background timer; it is always
// regenerated lazily from the elapsed time between UpdatedAt and "now"
// (spec.md §4.K, grounded on original_source/domain/src/credits.rs).
type CreditBalance struct {
	Available int
	UpdatedAt time.Time
}

// Regenerate returns the balance as of now, without persisting it. Each
// full cooldown interval elapsed since UpdatedAt adds one charge, clamped
// to MaxCharges.
func (b CreditBalance) Regenerate(cfg CreditConfig, now time.Time) CreditBalance {
	if cfg.CooldownSeconds <= 0 {
		return b
	}
	elapsed := now.Sub(b.UpdatedAt).Seconds()
	if elapsed <= 0 {
		return b
	}
	intervals := int64(elapsed) / cfg.CooldownSeconds
	if intervals <= 0 {
		return b
	}
	regenerated := b.Available + int(intervals)
	if regenerated > cfg.MaxCharges {
		regenerated = cfg.MaxCharges
	}
	return CreditBalance{
		Available: regenerated,
		UpdatedAt: b.UpdatedAt.Add(time.Duration(intervals*cfg.CooldownSeconds) * time.Second),
	}
}

// CanAfford reports whether the regenerated balance covers cost.
func (b CreditBalance) CanAfford(cfg CreditConfig, now time.Time, cost int) bool {
	return b.Regenerate(cfg, now).Available >= cost
}

// Spend regenerates the balance, then debits cost. It fails with
// InsufficientCreditsError if the regenerated balance is short.
func (b CreditBalance) Spend(cfg CreditConfig, now time.Time, cost int) (CreditBalance, error) {
	regenerated := b.Regenerate(cfg, now)
	if regenerated.Available < cost {
		return regenerated, &InsufficientCreditsError{Required: cost, Available: regenerated.Available}
	}
	return CreditBalance{Available: regenerated.Available - cost, UpdatedAt: now}, nil
}

// SecondsUntilNextCharge returns how long until the next lazy-regeneration
// tick would add a charge, or 0 if now sits exactly on a boundary.
func (b CreditBalance) SecondsUntilNextCharge(cfg CreditConfig, now time.Time) int64 {
	if cfg.CooldownSeconds <= 0 {
		return 0
	}
	elapsed := int64(now.Sub(b.UpdatedAt).Seconds())
	rem := elapsed % cfg.CooldownSeconds
	if rem == 0 {
		return 0
	}
	return cfg.CooldownSeconds - rem
}
