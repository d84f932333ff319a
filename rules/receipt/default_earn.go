package receipt

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/rules"
)

// DefaultEarn is the base receipt plugin: it always handles, and it converts
// the receipt's grand total into whole points at the program's configured
// multiplier.
type DefaultEarn struct{}

func (DefaultEarn) Name() string { return "default_earn" }

func (DefaultEarn) ShouldHandle(ctx context.Context, rc rules.ReceiptContext, h rules.Helpers) bool {
	return true
}

func (DefaultEarn) Apply(ctx context.Context, rc rules.ReceiptContext, h rules.Helpers) (*rules.Mutation, error) {
	raw, _, err := h.GetProgramConfig(ctx, rc.Tenant, rc.Receipt.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("default_earn: program config: %w", err)
	}
	cfg := parseDefaultEarnConfig(raw)

	dollars := decimal.NewFromBigInt(rc.Receipt.GrandTotalCents.Big(), -2)
	multiplier := decimal.NewFromFloat(cfg.multiplier())
	points := amount.RoundHalfAwayFromZero(dollars.Mul(multiplier))

	if !points.IsPositive() {
		return &rules.Mutation{Summary: map[string]any{"points_earned": 0}}, nil
	}

	entry := model.LedgerEntry{
		Tenant:    rc.Tenant,
		ProgramID: rc.Receipt.ProgramID,
		ReceiptID: rc.Receipt.ReceiptID,
		Memo:      fmt.Sprintf("earn:%s", rc.Receipt.MerchantID),
		Lines: []model.LedgerLine{
			{AccountID: rc.MerchantLiabilityAccount, Debit: points, Unit: "points"},
			{AccountID: rc.CustomerAccount, Credit: points, Unit: "points"},
		},
	}
	return &rules.Mutation{
		Entries: []model.LedgerEntry{entry},
		Summary: map[string]any{"points_earned": points.Int64()},
	}, nil
}
