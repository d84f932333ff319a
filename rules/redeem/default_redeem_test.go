package redeem

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/rules"
)

// fakeRedeemHelpers implements Helpers with canned attribution and freeze
// state; the receipt-side methods are inherited stubs since DefaultRedeem
// never calls them.
type fakeRedeemHelpers struct {
	config      json.RawMessage
	attribution []AttributionItem
	frozen      map[string]bool

	gotParams *AttributionParams
	ids       int
}

func (f *fakeRedeemHelpers) Now() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func (f *fakeRedeemHelpers) GenerateID() string {
	f.ids++
	return fmt.Sprintf("id-%d", f.ids)
}

func (f *fakeRedeemHelpers) GetProgramConfig(ctx context.Context, tenant, programID string) (json.RawMessage, bool, error) {
	return f.config, len(f.config) > 0, nil
}

func (f *fakeRedeemHelpers) GetAccountBalance(ctx context.Context, accountID, programID, unit string) (amount.Int, error) {
	return amount.Zero(), nil
}

func (f *fakeRedeemHelpers) GetRollingSpendCents(ctx context.Context, p rules.RollingSpendParams) (amount.Int, error) {
	return amount.Zero(), nil
}

func (f *fakeRedeemHelpers) UpsertCustomerTier(ctx context.Context, p rules.UpsertTierParams) error {
	return nil
}

func (f *fakeRedeemHelpers) GetCustomerTier(ctx context.Context, tenant, merchantID, customerAccount string) (*model.CustomerTier, error) {
	return nil, nil
}

func (f *fakeRedeemHelpers) GetOutstandingAttribution(ctx context.Context, tenant, customerAccount string, p AttributionParams) ([]AttributionItem, error) {
	f.gotParams = &p
	return f.attribution, nil
}

func (f *fakeRedeemHelpers) GetFrozenMerchants(ctx context.Context, tenant string, accounts []string) (map[string]bool, error) {
	out := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		out[a] = f.frozen[a]
	}
	return out, nil
}

func redeemContext(qty int64, burnMerchantID string) Context {
	return Context{
		Tenant: "tenant-a",
		Request: model.RedeemRequest{
			RequestID:      "req-1",
			Tenant:         "tenant-a",
			AccountID:      "cust-1",
			ProgramID:      "prog-1",
			Unit:           "points",
			Qty:            amount.FromInt64(qty),
			BurnMerchantID: burnMerchantID,
		},
		CustomerAccount: model.CustomerAccountID("tenant-a", "cust-1"),
	}
}

func attributed(account string, amt int64) AttributionItem {
	return AttributionItem{AccountID: account, Amount: amount.FromInt64(amt)}
}

func TestDefaultRedeemRejectsNonPositiveQty(t *testing.T) {
	h := &fakeRedeemHelpers{}
	result, err := DefaultRedeem{}.Apply(context.Background(), redeemContext(0, ""), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailureReason != "Redemption quantity must be positive" {
		t.Errorf("reason = %q", result.FailureReason)
	}
	if result.Retryable {
		t.Error("a non-positive quantity is not retryable")
	}
}

func TestDefaultRedeemInsufficientBalance(t *testing.T) {
	h := &fakeRedeemHelpers{attribution: []AttributionItem{attributed("partner-a", 10)}}
	result, err := DefaultRedeem{}.Apply(context.Background(), redeemContext(30, ""), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Success || result.FailureReason != "Insufficient balance" {
		t.Errorf("result = %+v, want Insufficient balance failure", result)
	}
}

func TestDefaultRedeemPriorityAllocatesAllToFirstPartner(t *testing.T) {
	cfg := json.RawMessage(`{"cross_brand_allocation": {"strategy": "priority",
		"partners": [{"merchant_account": "partner-a"}, {"merchant_account": "partner-b"}]}}`)
	h := &fakeRedeemHelpers{config: cfg, attribution: []AttributionItem{attributed("partner-a", 100)}}
	result, err := DefaultRedeem{}.Apply(context.Background(), redeemContext(30, ""), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Success {
		t.Fatalf("failed: %s", result.FailureReason)
	}
	entry := result.Entries[0]
	if len(entry.Lines) != 2 {
		t.Fatalf("expected debit + one credit, got %d lines", len(entry.Lines))
	}
	if entry.Lines[0].Debit.Int64() != 30 {
		t.Errorf("customer debit = %s, want 30", entry.Lines[0].Debit)
	}
	if entry.Lines[1].AccountID != "partner-a" || entry.Lines[1].Credit.Int64() != 30 {
		t.Errorf("credit line = %+v, want 30 to partner-a", entry.Lines[1])
	}
}

func TestDefaultRedeemProportionalByAttribution(t *testing.T) {
	cfg := json.RawMessage(`{"cross_brand_allocation": {"strategy": "proportional",
		"partners": [{"merchant_account": "partner-a", "weight": 1}, {"merchant_account": "partner-b", "weight": 1}]}}`)

	tests := []struct {
		qty   int64
		wantA int64
		wantB int64
	}{
		{20, 10, 10},
		{21, 11, 10},
	}
	for _, tt := range tests {
		h := &fakeRedeemHelpers{config: cfg, attribution: []AttributionItem{
			attributed("partner-a", 100),
			attributed("partner-b", 100),
		}}
		result, err := DefaultRedeem{}.Apply(context.Background(), redeemContext(tt.qty, ""), h)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if !result.Success {
			t.Fatalf("failed: %s", result.FailureReason)
		}
		entry := result.Entries[0]
		if got := entry.Lines[1].Credit.Int64(); got != tt.wantA {
			t.Errorf("qty %d: partner-a credit = %d, want %d", tt.qty, got, tt.wantA)
		}
		if got := entry.Lines[2].Credit.Int64(); got != tt.wantB {
			t.Errorf("qty %d: partner-b credit = %d, want %d", tt.qty, got, tt.wantB)
		}
	}
}

func TestDefaultRedeemEmptyAttributionFailsBalanceCheck(t *testing.T) {
	cfg := json.RawMessage(`{"cross_brand_allocation": {"strategy": "proportional",
		"partners": [{"merchant_account": "partner-a", "weight": 3}, {"merchant_account": "partner-b", "weight": 1}]}}`)
	// Empty attribution never reaches the weight fallback: the balance
	// check rejects first, since the attributed total is zero.
	h := &fakeRedeemHelpers{config: cfg, attribution: []AttributionItem{}}
	result, err := DefaultRedeem{}.Apply(context.Background(), redeemContext(20, ""), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Success {
		t.Fatal("empty attribution must fail the balance check")
	}
	if result.FailureReason != "Insufficient balance" {
		t.Errorf("reason = %q", result.FailureReason)
	}
}

func TestDefaultRedeemDropsFrozenPartners(t *testing.T) {
	cfg := json.RawMessage(`{"cross_brand_allocation": {"strategy": "priority",
		"partners": [{"merchant_account": "partner-a"}, {"merchant_account": "partner-b"}]}}`)
	h := &fakeRedeemHelpers{
		config:      cfg,
		frozen:      map[string]bool{"partner-a": true},
		attribution: []AttributionItem{attributed("partner-b", 50)},
	}
	result, err := DefaultRedeem{}.Apply(context.Background(), redeemContext(10, ""), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Success {
		t.Fatalf("failed: %s", result.FailureReason)
	}
	if h.gotParams == nil {
		t.Fatal("attribution was never consulted")
	}
	for _, acct := range h.gotParams.PartnerAccounts {
		if acct == "partner-a" {
			t.Error("frozen partner-a should have been dropped from the candidate list")
		}
	}
}

func TestDefaultRedeemSummaryShape(t *testing.T) {
	bps := int64(250)
	h := &fakeRedeemHelpers{attribution: []AttributionItem{
		{AccountID: "partner-a", Amount: amount.FromInt64(100), SettlementAdjustmentBps: &bps},
	}}
	result, err := DefaultRedeem{}.Apply(context.Background(), redeemContext(30, "burn-1"), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Summary["points_redeemed"] != int64(30) {
		t.Errorf("points_redeemed = %v", result.Summary["points_redeemed"])
	}
	if result.Summary["burn_merchant_id"] != "burn-1" {
		t.Errorf("burn_merchant_id = %v", result.Summary["burn_merchant_id"])
	}
	alloc, ok := result.Summary["allocation"].([]map[string]any)
	if !ok || len(alloc) != 1 {
		t.Fatalf("allocation = %+v", result.Summary["allocation"])
	}
	if alloc[0]["merchant_account"] != "partner-a" || alloc[0]["amount"] != int64(30) {
		t.Errorf("allocation[0] = %+v", alloc[0])
	}
	if alloc[0]["settlement_adjustment_bps"] != int64(250) {
		t.Errorf("settlement_adjustment_bps = %v", alloc[0]["settlement_adjustment_bps"])
	}
}

func TestDefaultRedeemPartnerHintMovesPartnerToFront(t *testing.T) {
	cfg := json.RawMessage(`{"cross_brand_allocation": {"strategy": "proportional", "partner_hint": "partner-b",
		"partners": [{"merchant_account": "partner-a"}, {"merchant_account": "partner-b"}]}}`)
	h := &fakeRedeemHelpers{config: cfg, attribution: []AttributionItem{
		attributed("partner-a", 50),
		attributed("partner-b", 50),
	}}
	result, err := DefaultRedeem{}.Apply(context.Background(), redeemContext(40, ""), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Success {
		t.Fatalf("failed: %s", result.FailureReason)
	}
	// A hint forces the priority strategy: everything to the hinted partner.
	if got := result.Entries[0].Lines[1].AccountID; got != "partner-b" {
		t.Errorf("first credit to %s, want partner-b", got)
	}
	if got := result.Entries[0].Lines[1].Credit.Int64(); got != 40 {
		t.Errorf("hinted partner credit = %d, want 40", got)
	}
}
