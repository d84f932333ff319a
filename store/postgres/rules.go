package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/loyaltyledger/engine/model"
)

// LoadRules implements attribution.RuleStore.
func (s *Store) LoadRules(ctx context.Context, tx any, tenant, burnMerchantID string) ([]model.MerchantRedemptionRule, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT tenant, earn_merchant_id, burn_merchant_id, earn_merchant_account, expiry_days_override, settlement_adjustment_bps, enabled
		FROM merchant_redemption_rules
		WHERE tenant = $1 AND burn_merchant_id = $2 AND enabled`,
		tenant, burnMerchantID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load rules: %w", err)
	}
	defer rows.Close()

	var out []model.MerchantRedemptionRule
	for rows.Next() {
		var r model.MerchantRedemptionRule
		if err := rows.Scan(&r.Tenant, &r.EarnMerchantID, &r.BurnMerchantID, &r.EarnMerchantAccount, &r.ExpiryDaysOverride, &r.SettlementAdjustmentBps, &r.Enabled); err != nil {
			return nil, fmt.Errorf("postgres: scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PutRule upserts one redemption rule into merchant_redemption_rules.
func (s *Store) PutRule(ctx context.Context, r model.MerchantRedemptionRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_redemption_rules (tenant, earn_merchant_id, burn_merchant_id, earn_merchant_account, expiry_days_override, settlement_adjustment_bps, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant, earn_merchant_id, burn_merchant_id) DO UPDATE SET
			earn_merchant_account = EXCLUDED.earn_merchant_account,
			expiry_days_override = EXCLUDED.expiry_days_override,
			settlement_adjustment_bps = EXCLUDED.settlement_adjustment_bps,
			enabled = EXCLUDED.enabled`,
		r.Tenant, r.EarnMerchantID, r.BurnMerchantID, r.EarnMerchantAccount, r.ExpiryDaysOverride, r.SettlementAdjustmentBps, r.Enabled)
	if err != nil {
		return fmt.Errorf("postgres: put rule: %w", err)
	}
	return nil
}

// GetFrozen implements attribution.MerchantStatusStore.
func (s *Store) GetFrozen(ctx context.Context, tx any, tenant string, accounts []string) (map[string]bool, error) {
	out := make(map[string]bool, len(accounts))
	for _, acc := range accounts {
		out[acc] = false
	}
	if len(accounts) == 0 {
		return out, nil
	}

	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT merchant_account, frozen FROM merchant_status
		WHERE tenant = $1 AND merchant_account = ANY($2::text[])`,
		tenant, pq.Array(accounts))
	if err != nil {
		return nil, fmt.Errorf("postgres: get frozen: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var account string
		var frozen bool
		if err := rows.Scan(&account, &frozen); err != nil {
			return nil, fmt.Errorf("postgres: scan frozen: %w", err)
		}
		out[account] = frozen
	}
	return out, rows.Err()
}

// SetFrozen upserts a merchant account's freeze state into merchant_status.
func (s *Store) SetFrozen(ctx context.Context, tenant, merchantAccount string, frozen bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_status (tenant, merchant_account, frozen)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant, merchant_account) DO UPDATE SET frozen = EXCLUDED.frozen`,
		tenant, merchantAccount, frozen)
	if err != nil {
		return fmt.Errorf("postgres: set frozen: %w", err)
	}
	return nil
}
