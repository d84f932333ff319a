package receipt

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/rules"
)

// NthFreeStamps implements the stamp-card / "buy N get one free" mechanic:
// item quantities accumulate stamps, and crossing a per-program threshold
// mints a coupon.
type NthFreeStamps struct{}

func (NthFreeStamps) Name() string { return "nth_free_stamps" }

func (NthFreeStamps) ShouldHandle(ctx context.Context, rc rules.ReceiptContext, h rules.Helpers) bool {
	return true
}

func (NthFreeStamps) Apply(ctx context.Context, rc rules.ReceiptContext, h rules.Helpers) (*rules.Mutation, error) {
	raw, ok, err := h.GetProgramConfig(ctx, rc.Tenant, rc.Receipt.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("nth_free_stamps: program config: %w", err)
	}
	if !ok {
		return nil, nil
	}
	cfg := parseNthFreeStampsConfig(raw)
	if len(cfg.StampPrograms) == 0 {
		return nil, nil
	}

	var entries []model.LedgerEntry
	summaryPrograms := []map[string]any{}

	for _, prog := range cfg.StampPrograms {
		tier, err := h.GetCustomerTier(ctx, rc.Tenant, rc.Receipt.MerchantID, rc.Receipt.AccountRef)
		if err != nil {
			return nil, fmt.Errorf("nth_free_stamps: customer tier: %w", err)
		}
		tierName := ""
		if tier != nil {
			tierName = tier.TierName
		}
		stampsPerItem := prog.effectiveStampsPerItem(tierName)
		threshold := prog.effectiveThreshold(tierName)

		matching := map[string]bool{}
		for _, sku := range prog.SKUs {
			matching[strings.ToLower(sku)] = true
		}

		var stampsAdded float64
		for _, item := range rc.Items {
			if matching[strings.ToLower(item.SKU)] {
				stampsAdded += float64(item.Qty) * stampsPerItem
			}
		}
		if stampsAdded <= 0 {
			continue
		}
		stampsAddedInt := amount.FromInt64(int64(math.Round(stampsAdded)))
		if !stampsAddedInt.IsPositive() {
			continue
		}

		unit := prog.unit()
		balance, err := h.GetAccountBalance(ctx, rc.CustomerAccount, rc.Receipt.ProgramID, unit)
		if err != nil {
			return nil, fmt.Errorf("nth_free_stamps: balance: %w", err)
		}

		entries = append(entries, model.LedgerEntry{
			Tenant:    rc.Tenant,
			ProgramID: rc.Receipt.ProgramID,
			ReceiptID: rc.Receipt.ReceiptID,
			Memo:      fmt.Sprintf("stamps:%s:%s", prog.ID, rc.Receipt.MerchantID),
			Lines: []model.LedgerLine{
				{AccountID: rc.MerchantLiabilityAccount, Debit: stampsAddedInt, Unit: unit},
				{AccountID: rc.CustomerAccount, Credit: stampsAddedInt, Unit: unit},
			},
		})

		coupons := floorDiv(balance.Int64()+stampsAddedInt.Int64(), threshold) - floorDiv(balance.Int64(), threshold)
		progSummary := map[string]any{
			"program_id":    prog.ID,
			"stamps_added":  stampsAddedInt.Int64(),
			"coupons_added": 0,
		}
		if coupons > 0 {
			couponUnit := prog.couponUnit()
			couponAmt := amount.FromInt64(coupons)
			entries = append(entries, model.LedgerEntry{
				Tenant:    rc.Tenant,
				ProgramID: rc.Receipt.ProgramID,
				ReceiptID: rc.Receipt.ReceiptID,
				Memo:      fmt.Sprintf("coupon:%s:%s", prog.ID, rc.Receipt.MerchantID),
				Lines: []model.LedgerLine{
					{AccountID: rc.MerchantLiabilityAccount, Debit: couponAmt, Unit: couponUnit},
					{AccountID: rc.CustomerAccount, Credit: couponAmt, Unit: couponUnit},
				},
			})
			progSummary["coupons_added"] = coupons
		}
		summaryPrograms = append(summaryPrograms, progSummary)
	}

	if len(entries) == 0 && len(summaryPrograms) == 0 {
		return nil, nil
	}
	return &rules.Mutation{
		Entries: entries,
		Summary: map[string]any{"stamp_programs": summaryPrograms},
	}, nil
}

// floorDiv divides two values using the threshold as a floating-point
// divisor, then floors toward negative infinity, per the floor(B/N)
// stamp-crossing formula.
func floorDiv(numerator int64, threshold float64) int64 {
	if threshold <= 0 {
		return 0
	}
	return int64(math.Floor(float64(numerator) / threshold))
}
