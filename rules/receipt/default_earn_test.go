package receipt

import (
	"context"
	"encoding/json"
	"testing"
)

func TestDefaultEarnZeroTotalEmitsNoEntries(t *testing.T) {
	h := &fakeHelpers{}
	m, err := DefaultEarn{}.Apply(context.Background(), testContext(0), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m == nil {
		t.Fatal("expected a mutation")
	}
	if len(m.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(m.Entries))
	}
	if got := m.Summary["points_earned"]; got != 0 {
		t.Errorf("points_earned = %v, want 0", got)
	}
}

func TestDefaultEarnRoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		name       string
		totalCents int64
		config     string
		want       int64
	}{
		{"default multiplier ties round up", 4250, "", 43},
		{"multiplier 1.5", 4250, `{"points_multiplier": 1.5}`, 64},
		{"exact dollars", 10000, "", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakeHelpers{config: json.RawMessage(tt.config), hasConfig: tt.config != ""}
			m, err := DefaultEarn{}.Apply(context.Background(), testContext(tt.totalCents), h)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := m.Summary["points_earned"]; got != tt.want {
				t.Errorf("points_earned = %v, want %d", got, tt.want)
			}
			if len(m.Entries) != 1 {
				t.Fatalf("expected one entry, got %d", len(m.Entries))
			}
		})
	}
}

func TestDefaultEarnEntryShape(t *testing.T) {
	h := &fakeHelpers{}
	rc := testContext(10000)
	m, err := DefaultEarn{}.Apply(context.Background(), rc, h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	entry := m.Entries[0]
	if entry.Memo != "earn:merchant-1" {
		t.Errorf("memo = %q, want earn:merchant-1", entry.Memo)
	}
	if len(entry.Lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(entry.Lines))
	}
	debit, credit := entry.Lines[0], entry.Lines[1]
	if debit.AccountID != rc.MerchantLiabilityAccount || !debit.Debit.IsPositive() {
		t.Errorf("first line should debit merchant liability, got %+v", debit)
	}
	if credit.AccountID != rc.CustomerAccount || !credit.Credit.IsPositive() {
		t.Errorf("second line should credit the customer, got %+v", credit)
	}
	if debit.Unit != "points" || credit.Unit != "points" {
		t.Errorf("both lines should be in the points unit")
	}
	if debit.Debit.Cmp(credit.Credit) != 0 {
		t.Errorf("entry does not balance: debit %s, credit %s", debit.Debit, credit.Credit)
	}
}

func TestDefaultEarnInvalidConfigSkipsEarning(t *testing.T) {
	h := &fakeHelpers{config: json.RawMessage(`{"points_multiplier": "not a number"}`), hasConfig: true}
	m, err := DefaultEarn{}.Apply(context.Background(), testContext(5000), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := m.Summary["points_earned"]; got != 0 {
		t.Errorf("points_earned = %v, want 0", got)
	}
	if len(m.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(m.Entries))
	}
}
