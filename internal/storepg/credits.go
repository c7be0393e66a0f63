package storepg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/adred-codev/pixelcanvas/domain"
)

// CreditAdapter implements ports.CreditStore over the same pgxpool as the
// durable tile store — credit balances are per-user account state, not
// tile data, but share the adapter's connection pool and timeout policy.
type CreditAdapter struct {
	*Adapter
}

// GetBalance returns the user's persisted balance, or a fresh zero balance
// if the user has never painted (spec.md §3, §4.K).
func (c *CreditAdapter) GetBalance(ctx context.Context, userID string) (domain.CreditBalance, error) {
	cctx, cancel := c.timeout(ctx)
	defer cancel()

	var balance domain.CreditBalance
	err := c.Pool.QueryRow(cctx, `
		SELECT available_charges, charges_updated_at FROM user_credits WHERE user_id = $1`,
		userID).Scan(&balance.Available, &balance.UpdatedAt)
	if err == pgx.ErrNoRows {
		return domain.CreditBalance{}, nil
	}
	if err != nil {
		return domain.CreditBalance{}, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	return balance, nil
}

// UpdateBalance upserts the user's balance.
func (c *CreditAdapter) UpdateBalance(ctx context.Context, userID string, balance domain.CreditBalance) error {
	cctx, cancel := c.timeout(ctx)
	defer cancel()

	_, err := c.Pool.Exec(cctx, `
		INSERT INTO user_credits (user_id, available_charges, charges_updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			available_charges = EXCLUDED.available_charges,
			charges_updated_at = EXCLUDED.charges_updated_at`,
		userID, balance.Available, balance.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	return nil
}
