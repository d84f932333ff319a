package redeem

import (
	"context"
	"fmt"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// DefaultRedeem is the built-in, always-handling redeem plugin: it
// resolves cross-brand attribution, picks an allocation strategy,
// and posts a single redeem entry debiting the customer and crediting each
// allocated partner account.
type DefaultRedeem struct{}

func (DefaultRedeem) Name() string { return "default_redeem" }

func (DefaultRedeem) ShouldHandle(ctx context.Context, rc Context, h Helpers) bool {
	return true
}

func (DefaultRedeem) Apply(ctx context.Context, rc Context, h Helpers) (*Result, error) {
	if !rc.Request.Qty.IsPositive() {
		return Failure("Redemption quantity must be positive", false), nil
	}

	raw, _, err := h.GetProgramConfig(ctx, rc.Tenant, rc.Request.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("default_redeem: program config: %w", err)
	}
	cfg := parseCrossBrandAllocationConfig(raw)

	merchantLiability := model.MerchantLiabilityAccountID(rc.Tenant)

	candidates := make([]string, 0, len(cfg.Partners))
	for _, p := range cfg.Partners {
		candidates = append(candidates, p.MerchantAccount)
	}
	if len(candidates) == 0 {
		candidates = []string{merchantLiability}
	}

	frozen, err := h.GetFrozenMerchants(ctx, rc.Tenant, candidates)
	if err != nil {
		return nil, fmt.Errorf("default_redeem: frozen merchants: %w", err)
	}
	unfrozen := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !frozen[c] {
			unfrozen = append(unfrozen, c)
		}
	}
	partnerAccounts := unfrozen
	if len(partnerAccounts) == 0 {
		partnerAccounts = []string{merchantLiability}
	}

	attribution, err := h.GetOutstandingAttribution(ctx, rc.Tenant, rc.CustomerAccount, AttributionParams{
		PartnerAccounts: partnerAccounts,
		PartnerMap:      cfg.PartnerMap,
		ExpiryDays:      cfg.ExpiryDays,
		BurnMerchantID:  rc.Request.BurnMerchantID,
	})
	if err != nil {
		return nil, fmt.Errorf("default_redeem: attribution: %w", err)
	}

	total := amount.Zero()
	for _, a := range attribution {
		total = total.Add(a.Amount)
	}
	if total.Cmp(rc.Request.Qty) < 0 {
		return Failure("Insufficient balance", false), nil
	}

	allocations, err := allocate(cfg, attribution, partnerAccounts, rc.Request.Qty)
	if err != nil {
		return nil, err
	}

	lines := make([]model.LedgerLine, 0, len(allocations)+1)
	lines = append(lines, model.LedgerLine{
		AccountID: rc.CustomerAccount,
		Debit:     rc.Request.Qty,
		Unit:      rc.Request.Unit,
	})
	summaryAlloc := make([]map[string]any, 0, len(allocations))
	for _, a := range allocations {
		if a.Amount.IsZero() {
			continue
		}
		lines = append(lines, model.LedgerLine{
			AccountID: a.AccountID,
			Credit:    a.Amount,
			Unit:      rc.Request.Unit,
		})
		entry := map[string]any{
			"merchant_account": a.AccountID,
			"amount":           a.Amount.Int64(),
		}
		if a.SettlementAdjustmentBps != nil {
			entry["settlement_adjustment_bps"] = *a.SettlementAdjustmentBps
		} else {
			entry["settlement_adjustment_bps"] = nil
		}
		summaryAlloc = append(summaryAlloc, entry)
	}

	entry := model.LedgerEntry{
		Tenant:    rc.Tenant,
		ProgramID: rc.Request.ProgramID,
		Memo:      rc.Request.Memo,
		Lines:     lines,
	}

	summary := map[string]any{
		"points_redeemed": rc.Request.Qty.Int64(),
		"allocation":      summaryAlloc,
		"burn_merchant_id": nil,
	}
	if rc.Request.BurnMerchantID != "" {
		summary["burn_merchant_id"] = rc.Request.BurnMerchantID
	}

	return &Result{
		Success: true,
		Entries: []model.LedgerEntry{entry},
		Summary: summary,
	}, nil
}

// allocate picks the allocation per cfg.Strategy.
func allocate(cfg crossBrandAllocationConfig, attribution []AttributionItem, partnerAccounts []string, qty amount.Int) ([]AttributionItem, error) {
	strategy := cfg.Strategy
	if cfg.PartnerHint != "" {
		strategy = "priority"
	}

	switch strategy {
	case "source_proportional":
		return proportionalByAttribution(attribution, qty), nil
	case "proportional":
		if len(attribution) > 0 {
			return proportionalByAttribution(attribution, qty), nil
		}
		return proportionalByWeight(cfg, partnerAccounts, qty), nil
	default: // "priority"
		return priorityAllocation(cfg, attribution, partnerAccounts, qty), nil
	}
}

func proportionalByAttribution(attribution []AttributionItem, qty amount.Int) []AttributionItem {
	weights := make([]amount.Int, len(attribution))
	for i, a := range attribution {
		weights[i] = a.Amount
	}
	shares := Distribute(qty, weights)
	out := make([]AttributionItem, len(attribution))
	for i, a := range attribution {
		out[i] = AttributionItem{AccountID: a.AccountID, Amount: shares[i], SettlementAdjustmentBps: a.SettlementAdjustmentBps}
	}
	return out
}

func proportionalByWeight(cfg crossBrandAllocationConfig, partnerAccounts []string, qty amount.Int) []AttributionItem {
	weightByAccount := map[string]float64{}
	for _, p := range cfg.Partners {
		weightByAccount[p.MerchantAccount] = p.weight()
	}
	// Scale float weights to integers deterministically (millis) so the
	// largest-remainder algorithm can run on exact integer math.
	weights := make([]amount.Int, len(partnerAccounts))
	for i, acct := range partnerAccounts {
		w := weightByAccount[acct]
		if w <= 0 {
			w = 1
		}
		weights[i] = amount.FromInt64(int64(w * 1000))
	}
	shares := Distribute(qty, weights)
	out := make([]AttributionItem, len(partnerAccounts))
	for i, acct := range partnerAccounts {
		out[i] = AttributionItem{AccountID: acct, Amount: shares[i]}
	}
	return out
}

func priorityAllocation(cfg crossBrandAllocationConfig, attribution []AttributionItem, partnerAccounts []string, qty amount.Int) []AttributionItem {
	ordered := append([]AttributionItem(nil), attribution...)
	if len(ordered) == 0 {
		// No attribution detail (e.g. single-candidate fallback): build a
		// synthetic single-entry allocation against the first candidate.
		acct := partnerAccounts[0]
		ordered = []AttributionItem{{AccountID: acct, Amount: qty}}
	}
	if cfg.PartnerHint != "" {
		for i, a := range ordered {
			if a.AccountID == cfg.PartnerHint && i != 0 {
				ordered[0], ordered[i] = ordered[i], ordered[0]
				break
			}
		}
	}

	out := make([]AttributionItem, len(ordered))
	out[0] = AttributionItem{AccountID: ordered[0].AccountID, Amount: qty, SettlementAdjustmentBps: ordered[0].SettlementAdjustmentBps}
	for i := 1; i < len(ordered); i++ {
		out[i] = AttributionItem{AccountID: ordered[i].AccountID, Amount: amount.Zero(), SettlementAdjustmentBps: ordered[i].SettlementAdjustmentBps}
	}
	return out
}
