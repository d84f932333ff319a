// Package attribution implements the redemption rule store and the
// cross-brand attribution algorithm: mapping a customer's outstanding lots
// to partner merchant accounts, respecting freeze state, expiry, and
// earn→burn rules. This is the algorithmically trickiest part of the
// engine, so RuleSet (below) is kept pure and database-free.
package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// RuleStore loads the enabled merchant redemption rules for a burn merchant.
type RuleStore interface {
	LoadRules(ctx context.Context, tx any, tenant, burnMerchantID string) ([]model.MerchantRedemptionRule, error)
}

// MerchantStatusStore reports freeze state.
type MerchantStatusStore interface {
	GetFrozen(ctx context.Context, tx any, tenant string, accounts []string) (map[string]bool, error)
}

// LotSumStore is the subset of lot.Store attribution needs: sum remaining
// quantity, scoped either to one merchant or grouped across all merchants.
type LotSumStore interface {
	SumRemaining(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) (amount.Int, error)
	SumRemainingByMerchant(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, now time.Time) (map[string]amount.Int, error)
}

// RuleSet is the indexed result of LoadRules: all enabled rules for a burn
// merchant, indexed by earn_merchant_account and by earn_merchant_id.
type RuleSet struct {
	ByEarnAccount  map[string]model.MerchantRedemptionRule
	ByEarnMerchant map[string]model.MerchantRedemptionRule
	rules          []model.MerchantRedemptionRule
}

// Empty reports whether no enabled rules exist for the burn merchant.
func (rs RuleSet) Empty() bool { return len(rs.rules) == 0 }

// Attribution binds the three store dependencies together.
type Attribution struct {
	rules    RuleStore
	status   MerchantStatusStore
	lots     LotSumStore
	now      func() time.Time
}

// New constructs an Attribution.
func New(rules RuleStore, status MerchantStatusStore, lots LotSumStore, now func() time.Time) *Attribution {
	return &Attribution{rules: rules, status: status, lots: lots, now: now}
}

// LoadRules returns all enabled rules for burnMerchantID, indexed both ways.
// With no burnMerchantID, returns an empty set.
func (a *Attribution) LoadRules(ctx context.Context, tx any, tenant, burnMerchantID string) (RuleSet, error) {
	if burnMerchantID == "" {
		return RuleSet{ByEarnAccount: map[string]model.MerchantRedemptionRule{}, ByEarnMerchant: map[string]model.MerchantRedemptionRule{}}, nil
	}
	list, err := a.rules.LoadRules(ctx, tx, tenant, burnMerchantID)
	if err != nil {
		return RuleSet{}, fmt.Errorf("attribution: load rules: %w", err)
	}
	rs := RuleSet{
		ByEarnAccount:  make(map[string]model.MerchantRedemptionRule, len(list)),
		ByEarnMerchant: make(map[string]model.MerchantRedemptionRule, len(list)),
		rules:          list,
	}
	for _, r := range list {
		rs.ByEarnAccount[r.EarnMerchantAccount] = r
		rs.ByEarnMerchant[r.EarnMerchantID] = r
	}
	return rs, nil
}

// GetFrozenMerchants returns the subset of accounts currently frozen.
func (a *Attribution) GetFrozenMerchants(ctx context.Context, tx any, tenant string, accounts []string) (map[string]bool, error) {
	frozen, err := a.status.GetFrozen(ctx, tx, tenant, accounts)
	if err != nil {
		return nil, fmt.Errorf("attribution: frozen merchants: %w", err)
	}
	return frozen, nil
}

// Params are the inputs to GetOutstandingAttribution.
type Params struct {
	Tenant          string
	CustomerAccount string
	ProgramID       string
	Unit            string
	PartnerAccounts []string
	PartnerMap      map[string]string // merchant_id -> partner_account
	ExpiryDays      *int64
	BurnMerchantID  string
}

// Item is one partner account's outstanding attributed balance.
type Item struct {
	AccountID               string
	Amount                  amount.Int
	SettlementAdjustmentBps *int64
}

// GetOutstandingAttribution runs steps 2-4 of the attribution algorithm. It
// does not consult freeze state: step 1, dropping frozen partner accounts,
// is done by the caller (DefaultRedeem) before PartnerAccounts is passed in.
func (a *Attribution) GetOutstandingAttribution(ctx context.Context, tx any, p Params) ([]Item, error) {
	rs, err := a.LoadRules(ctx, tx, p.Tenant, p.BurnMerchantID)
	if err != nil {
		return nil, err
	}

	if !rs.Empty() {
		// Step 2: iterate rules whose earn_merchant_account is a candidate.
		candidateSet := make(map[string]bool, len(p.PartnerAccounts))
		for _, c := range p.PartnerAccounts {
			candidateSet[c] = true
		}
		var items []Item
		for _, r := range rs.rules {
			if !candidateSet[r.EarnMerchantAccount] {
				continue
			}
			bound := combineExpiry(p.ExpiryDays, r.ExpiryDaysOverride)
			sum, err := a.lots.SumRemaining(ctx, tx, p.Tenant, p.CustomerAccount, p.ProgramID, p.Unit, model.ConsumeFilter{
				MerchantIDs: []string{r.EarnMerchantID},
				ExpiryDays:  bound,
			}, a.now())
			if err != nil {
				return nil, fmt.Errorf("attribution: sum eligible for rule %s: %w", r.EarnMerchantID, err)
			}
			if sum.IsZero() {
				continue
			}
			items = append(items, Item{AccountID: r.EarnMerchantAccount, Amount: sum, SettlementAdjustmentBps: r.SettlementAdjustmentBps})
		}
		return items, nil
	}

	if p.BurnMerchantID != "" {
		// Step 4: rules table has rows for other burn merchants but none
		// for this one (LoadRules already filters by burn merchant, so an
		// empty RuleSet here with a BurnMerchantID set means "no rule").
		return nil, nil
	}

	// Step 3: no rules at all and no burn merchant supplied — fall back to
	// grouping qty_remaining by merchant_id among non-expired lots, mapped
	// to a partner account via PartnerMap or the sole candidate.
	byMerchant, err := a.lots.SumRemainingByMerchant(ctx, tx, p.Tenant, p.CustomerAccount, p.ProgramID, p.Unit, a.now())
	if err != nil {
		return nil, fmt.Errorf("attribution: sum by merchant: %w", err)
	}
	var sole string
	if len(p.PartnerAccounts) == 1 {
		sole = p.PartnerAccounts[0]
	}
	var items []Item
	for merchantID, qty := range byMerchant {
		if qty.IsZero() {
			continue
		}
		account, ok := p.PartnerMap[merchantID]
		if !ok {
			account = sole
		}
		if account == "" {
			continue // unmappable lots are dropped
		}
		items = append(items, Item{AccountID: account, Amount: qty})
	}
	return items, nil
}

// combineExpiry returns the tighter (smaller, non-nil) of two optional
// day bounds; nil means unbounded.
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
