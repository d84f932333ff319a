package jobproc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/attribution"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/rules"
	"github.com/loyaltyledger/engine/rules/redeem"
)

// jobHelpers implements rules.Helpers and redeem.Helpers, scoped to one
// job's transaction and frozen wall clock. Design note: "wall
// clock and ID generation are always supplied via helpers; never read them
// directly from the environment inside plugin code" — this type is the only
// place that calls p.now()/p.newID() on behalf of a plugin.
type jobHelpers struct {
	p         *Processor
	tx        any
	tenant    string
	frozen    time.Time
	programID string // only set while processing a redeem job
	unit      string // only set while processing a redeem job
}

var _ rules.Helpers = (*jobHelpers)(nil)
var _ redeem.Helpers = (*jobHelpers)(nil)

func (h *jobHelpers) Now() time.Time    { return h.frozen }
func (h *jobHelpers) GenerateID() string { return h.p.newID() }

func (h *jobHelpers) GetProgramConfig(ctx context.Context, tenant, programID string) (json.RawMessage, bool, error) {
	return h.p.programConfig.Get(ctx, h.tx, tenant, programID)
}

func (h *jobHelpers) GetAccountBalance(ctx context.Context, accountID, programID, unit string) (amount.Int, error) {
	return h.p.ledger.Balance(ctx, h.tx, h.tenant, accountID, programID, unit)
}

func (h *jobHelpers) GetRollingSpendCents(ctx context.Context, p rules.RollingSpendParams) (amount.Int, error) {
	return h.p.receipts.RollingSpendCents(ctx, h.tx, p.Tenant, p.MerchantID, p.CustomerAccount, p.WindowStart, p.WindowEnd)
}

func (h *jobHelpers) UpsertCustomerTier(ctx context.Context, p rules.UpsertTierParams) error {
	return h.p.tiers.Upsert(ctx, h.tx, model.CustomerTier{
		Tenant:            p.Tenant,
		MerchantID:        p.MerchantID,
		CustomerAccount:   p.CustomerAccount,
		TierName:          p.TierName,
		WindowDays:        p.WindowDays,
		WindowStart:       p.WindowStart,
		WindowEnd:         p.WindowEnd,
		RollingSpendCents: p.RollingSpendCents,
		UpdatedAt:         h.frozen,
	})
}

func (h *jobHelpers) GetCustomerTier(ctx context.Context, tenant, merchantID, customerAccount string) (*model.CustomerTier, error) {
	return h.p.tiers.Get(ctx, h.tx, tenant, merchantID, customerAccount)
}

func (h *jobHelpers) GetOutstandingAttribution(ctx context.Context, tenant, customerAccount string, p redeem.AttributionParams) ([]redeem.AttributionItem, error) {
	items, err := h.p.attribution.GetOutstandingAttribution(ctx, h.tx, attribution.Params{
		Tenant:          tenant,
		CustomerAccount: customerAccount,
		ProgramID:       h.programID,
		Unit:            h.unit,
		PartnerAccounts: p.PartnerAccounts,
		PartnerMap:      p.PartnerMap,
		ExpiryDays:      p.ExpiryDays,
		BurnMerchantID:  p.BurnMerchantID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]redeem.AttributionItem, len(items))
	for i, it := range items {
		out[i] = redeem.AttributionItem{AccountID: it.AccountID, Amount: it.Amount, SettlementAdjustmentBps: it.SettlementAdjustmentBps}
	}
	return out, nil
}

func (h *jobHelpers) GetFrozenMerchants(ctx context.Context, tenant string, accounts []string) (map[string]bool, error) {
	return h.p.attribution.GetFrozenMerchants(ctx, h.tx, tenant, accounts)
}
