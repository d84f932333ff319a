package receipt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/loyaltyledger/engine/rules"
)

// RollingSpendTier recomputes the customer's loyalty tier from spend over a
// trailing window. It never posts ledger entries; it only
// upserts tier state and reports the selection.
type RollingSpendTier struct{}

func (RollingSpendTier) Name() string { return "rolling_spend_tier" }

func (RollingSpendTier) ShouldHandle(ctx context.Context, rc rules.ReceiptContext, h rules.Helpers) bool {
	return true
}

func (RollingSpendTier) Apply(ctx context.Context, rc rules.ReceiptContext, h rules.Helpers) (*rules.Mutation, error) {
	raw, ok, err := h.GetProgramConfig(ctx, rc.Tenant, rc.Receipt.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("rolling_spend_tier: program config: %w", err)
	}
	if !ok {
		return nil, nil
	}
	cfg := parseRollingSpendTierConfig(raw)
	if cfg.LoyaltyTiers == nil || len(cfg.LoyaltyTiers.Tiers) == 0 {
		return nil, nil
	}

	tiers := append([]loyaltyTier(nil), cfg.LoyaltyTiers.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].ThresholdCents < tiers[j].ThresholdCents })

	windowEnd := h.Now()
	windowStart := windowEnd.Add(-time.Duration(cfg.LoyaltyTiers.WindowDays) * 24 * time.Hour)

	spend, err := h.GetRollingSpendCents(ctx, rules.RollingSpendParams{
		Tenant:          rc.Tenant,
		MerchantID:      rc.Receipt.MerchantID,
		CustomerAccount: rc.Receipt.AccountRef,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("rolling_spend_tier: rolling spend: %w", err)
	}

	selected := tiers[0]
	for _, t := range tiers {
		if t.ThresholdCents <= spend.Int64() {
			selected = t
		}
	}
	tierName := selected.ID
	if selected.DisplayName != "" {
		tierName = selected.DisplayName
	}

	if err := h.UpsertCustomerTier(ctx, rules.UpsertTierParams{
		Tenant:            rc.Tenant,
		MerchantID:        rc.Receipt.MerchantID,
		CustomerAccount:   rc.Receipt.AccountRef,
		TierName:          tierName,
		WindowDays:        cfg.LoyaltyTiers.WindowDays,
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
		RollingSpendCents: spend.Int64(),
	}); err != nil {
		return nil, fmt.Errorf("rolling_spend_tier: upsert tier: %w", err)
	}

	return &rules.Mutation{
		Summary: map[string]any{
			"loyalty_tier": map[string]any{
				"tier_id":             selected.ID,
				"tier_name":           tierName,
				"rolling_spend_cents": spend.Int64(),
			},
		},
	}, nil
}
