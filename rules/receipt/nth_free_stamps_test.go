package receipt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/loyaltyledger/engine/model"
)

const coffeeConfig = `{"stamp_programs": [
	{"id": "coffee", "skus": ["latte", "espresso"], "stamps_per_item": 1, "threshold": 5}
]}`

func TestNthFreeStampsNoMatchingSKUsSkips(t *testing.T) {
	h := &fakeHelpers{config: json.RawMessage(coffeeConfig), hasConfig: true}
	m, err := NthFreeStamps{}.Apply(context.Background(), testContext(1000, model.ReceiptItem{SKU: "sandwich", Qty: 2}), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil mutation, got %+v", m)
	}
}

func TestNthFreeStampsCrossingThresholdMintsCoupon(t *testing.T) {
	rc := testContext(1000, model.ReceiptItem{SKU: "latte", Qty: 3})
	h := &fakeHelpers{
		config:    json.RawMessage(coffeeConfig),
		hasConfig: true,
		balances:  map[string]int64{rc.CustomerAccount + "/stamps:coffee": 4},
	}
	m, err := NthFreeStamps{}.Apply(context.Background(), rc, h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m == nil {
		t.Fatal("expected a mutation")
	}
	if len(m.Entries) != 2 {
		t.Fatalf("expected stamps entry + coupon entry, got %d entries", len(m.Entries))
	}

	stamps := m.Entries[0]
	if stamps.Lines[1].Unit != "stamps:coffee" || stamps.Lines[1].Credit.Int64() != 3 {
		t.Errorf("stamps credit = %+v, want 3 in stamps:coffee", stamps.Lines[1])
	}
	coupon := m.Entries[1]
	if coupon.Lines[1].Unit != "coupon:coffee" || coupon.Lines[1].Credit.Int64() != 1 {
		t.Errorf("coupon credit = %+v, want 1 in coupon:coffee", coupon.Lines[1])
	}
}

func TestNthFreeStampsBelowThresholdOnlyStamps(t *testing.T) {
	rc := testContext(1000, model.ReceiptItem{SKU: "espresso", Qty: 2})
	h := &fakeHelpers{
		config:    json.RawMessage(coffeeConfig),
		hasConfig: true,
		balances:  map[string]int64{rc.CustomerAccount + "/stamps:coffee": 1},
	}
	m, err := NthFreeStamps{}.Apply(context.Background(), rc, h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(m.Entries) != 1 {
		t.Fatalf("expected only the stamps entry, got %d entries", len(m.Entries))
	}
}

func TestNthFreeStampsSKUMatchIsCaseInsensitive(t *testing.T) {
	rc := testContext(1000, model.ReceiptItem{SKU: "LATTE", Qty: 1})
	h := &fakeHelpers{config: json.RawMessage(coffeeConfig), hasConfig: true}
	m, err := NthFreeStamps{}.Apply(context.Background(), rc, h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m == nil || len(m.Entries) != 1 {
		t.Fatal("expected one stamps entry for a case-mismatched SKU")
	}
}

func TestNthFreeStampsTierOverrideChangesRate(t *testing.T) {
	cfg := `{"stamp_programs": [
		{"id": "coffee", "skus": ["latte"], "stamps_per_item": 1, "threshold": 5,
		 "tier_overrides": {"gold": {"stamps_per_item": 2}}}
	]}`
	rc := testContext(1000, model.ReceiptItem{SKU: "latte", Qty: 2})
	h := &fakeHelpers{
		config:    json.RawMessage(cfg),
		hasConfig: true,
		tier:      &model.CustomerTier{TierName: "gold"},
	}
	m, err := NthFreeStamps{}.Apply(context.Background(), rc, h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := m.Entries[0].Lines[1].Credit.Int64(); got != 4 {
		t.Errorf("stamps added = %d, want 4 with the gold override", got)
	}
}

func TestNthFreeStampsMultipleThresholdCrossings(t *testing.T) {
	rc := testContext(1000, model.ReceiptItem{SKU: "latte", Qty: 11})
	h := &fakeHelpers{
		config:    json.RawMessage(coffeeConfig),
		hasConfig: true,
	}
	m, err := NthFreeStamps{}.Apply(context.Background(), rc, h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	coupon := m.Entries[1]
	if got := coupon.Lines[1].Credit.Int64(); got != 2 {
		t.Errorf("coupons = %d, want 2 for 11 stamps at threshold 5", got)
	}
}
