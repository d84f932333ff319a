package jobproc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/lot"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/rules/redeem"
)

// createEarnLots is mutation-application step 2: for every earn entry
// (memo begins with "earn:"), for every credit line in the
// points unit targeting a customer account, create a lot tied to that
// entry. entryIDs is parallel to entries (the AppendEntries return value).
func (p *Processor) createEarnLots(ctx context.Context, tx any, tenant string, entries []model.LedgerEntry, entryIDs []string, frozen time.Time) error {
	for i, entry := range entries {
		merchantID, ok := earnMerchantID(entry.Memo)
		if !ok {
			continue
		}
		raw, _, err := p.programConfig.Get(ctx, tx, tenant, entry.ProgramID)
		if err != nil {
			return fmt.Errorf("program config: %w", retryable(err))
		}
		expiryCfg := parseLotExpiryConfig(raw)
		expires := expiresAt(frozen, expiryCfg.expiryDays(merchantID))

		merchantLiability := model.MerchantLiabilityAccountID(tenant)
		for _, line := range entry.Lines {
			if line.Unit != "points" || !line.Credit.IsPositive() || line.AccountID == merchantLiability {
				continue
			}
			if _, err := p.lots.CreateLot(ctx, tx, lot.CreateParams{
				Tenant:          tenant,
				ProgramID:       entry.ProgramID,
				Unit:            line.Unit,
				CustomerAccount: line.AccountID,
				MerchantID:      merchantID,
				EarnEntryID:     entryIDs[i],
				Qty:             line.Credit,
				ExpiresAt:       expires,
			}); err != nil {
				return fmt.Errorf("create lot: %w", err)
			}
		}
	}
	return nil
}

// earnMerchantID extracts the merchant id from an earn entry's memo
// ("earn:{merchant_id}"). The memo prefix is the sole trigger for lot
// creation.
func earnMerchantID(memo string) (string, bool) {
	const prefix = "earn:"
	if !strings.HasPrefix(memo, prefix) {
		return "", false
	}
	return strings.TrimPrefix(memo, prefix), true
}

// consumeRedeemedLots is mutation-application step 3. When the redeem
// result's summary carries an allocation, consumption is
// scoped per allocation item to the merchant set implied by a matching
// MerchantRedemptionRule (preferred) or the reverse partner_map; otherwise
// it is untargeted FIFO consumption of the full redeemed amount.
func (p *Processor) consumeRedeemedLots(ctx context.Context, tx any, tenant, burnMerchantID string, result *redeem.Result, entryIDs []string, frozen time.Time) error {
	entry := result.Entries[0]
	customerAccount, programID, unit, qty := debitLine(entry)
	if customerAccount == "" {
		return nil
	}

	allocation, ok := result.Summary["allocation"].([]map[string]any)
	if !ok || len(allocation) == 0 {
		return p.lots.Consume(ctx, tx, lot.ConsumeParams{
			Tenant:          tenant,
			CustomerAccount: customerAccount,
			ProgramID:       programID,
			Unit:            unit,
			Amount:          qty,
		}, model.ConsumeFilter{})
	}

	ruleSet, err := p.attribution.LoadRules(ctx, tx, tenant, burnMerchantID)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	raw, _, err := p.programConfig.Get(ctx, tx, tenant, programID)
	if err != nil {
		return fmt.Errorf("program config: %w", retryable(err))
	}
	allocCfg := parseLotExpiryConfig(raw)
	var globalExpiryDays *int64
	reverseMap := map[string][]string{}
	if allocCfg.CrossBrandAllocation != nil {
		globalExpiryDays = allocCfg.CrossBrandAllocation.ExpiryDays
		for merchantID, account := range allocCfg.CrossBrandAllocation.PartnerMap {
			reverseMap[account] = append(reverseMap[account], merchantID)
		}
	}

	for _, item := range allocation {
		account, _ := item["merchant_account"].(string)
		amt := allocationAmount(item)
		if account == "" || !amt.IsPositive() {
			continue
		}

		var merchantIDs []string
		var override *int64
		if rule, ok := ruleSet.ByEarnAccount[account]; ok {
			merchantIDs = []string{rule.EarnMerchantID}
			override = rule.ExpiryDaysOverride
		} else {
			merchantIDs = reverseMap[account]
		}

		bound := combineExpiry(globalExpiryDays, override)
		if err := p.lots.Consume(ctx, tx, lot.ConsumeParams{
			Tenant:          tenant,
			CustomerAccount: customerAccount,
			ProgramID:       programID,
			Unit:            unit,
			Amount:          amt,
		}, model.ConsumeFilter{MerchantIDs: merchantIDs, ExpiryDays: bound}); err != nil {
			return fmt.Errorf("consume for %s: %w", account, err)
		}
	}
	return nil
}

// debitLine returns the customer account, program id, unit, and amount of
// the redeem entry's single debit line (the customer leg).
func debitLine(entry model.LedgerEntry) (account, programID, unit string, qty amount.Int) {
	for _, line := range entry.Lines {
		if line.Debit.IsPositive() {
			return line.AccountID, entry.ProgramID, line.Unit, line.Debit
		}
	}
	return "", "", "", amount.Zero()
}

// allocationAmount extracts the integer amount from one allocation summary
// entry, which the built-in DefaultRedeem plugin populates with an int64.
func allocationAmount(item map[string]any) amount.Int {
	switch v := item["amount"].(type) {
	case int64:
		return amount.FromInt64(v)
	case int:
		return amount.FromInt64(int64(v))
	default:
		return amount.Zero()
	}
}

// combineExpiry returns the tighter (smaller, non-nil) of two optional day
// bounds; nil means unbounded. Mirrors attribution.combineExpiry — kept as
// a small local copy so jobproc does not need to reach into attribution's
// rule-indexing internals for a five-line comparison.
func combineExpiry(global, override *int64) *int64 {
	if global == nil {
		return override
	}
	if override == nil {
		return global
	}
	if *override < *global {
		return override
	}
	return global
}
