package settlement_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/ledger"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/settlement"
	"github.com/loyaltyledger/engine/store/memory"
)

const tenant = "tenant-a"

func appendEntry(t *testing.T, led *ledger.Ledger, debitAccount, creditAccount string, qty int64) {
	t.Helper()
	_, err := led.AppendEntries(context.Background(), nil, tenant, []model.LedgerEntry{{
		Tenant:    tenant,
		ProgramID: "prog-1",
		Lines: []model.LedgerLine{
			{AccountID: debitAccount, Debit: amount.FromInt64(qty), Unit: "points"},
			{AccountID: creditAccount, Credit: amount.FromInt64(qty), Unit: "points"},
		},
	}})
	if err != nil {
		t.Fatalf("append entry: %v", err)
	}
}

func TestRunAggregatesNetLiabilityOverWindow(t *testing.T) {
	store := memory.New()
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	entryClock := func() time.Time { return now.Add(-time.Hour) }
	seq := 0
	newID := func() string { seq++; return fmt.Sprintf("e-%d", seq) }
	led := ledger.New(store, newID, entryClock)

	liability := model.MerchantLiabilityAccountID(tenant)
	customer := model.CustomerAccountID(tenant, "cust-1")

	// Earn 100 (debits liability), then redeem 30 (credits it back):
	// net liability movement over the window is -70.
	appendEntry(t, led, liability, customer, 100)
	appendEntry(t, led, customer, liability, 30)

	reporter := settlement.New(store, func() time.Time { return now }, settlement.Config{Lookback: 24 * time.Hour})
	n, err := reporter.Run(context.Background(), nil, tenant)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows written = %d, want 1", n)
	}

	start := now.Add(-24 * time.Hour)
	report, ok := store.GetSettlementReport(tenant, liability, start, now)
	if !ok {
		t.Fatal("report row missing")
	}
	if report.NetPoints.Int64() != -70 {
		t.Errorf("net_points = %s, want -70", report.NetPoints)
	}
}

func TestRunExcludesEntriesOutsideWindow(t *testing.T) {
	store := memory.New()
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	current := now.Add(-48 * time.Hour)
	clock := func() time.Time { return current }
	seq := 0
	newID := func() string { seq++; return fmt.Sprintf("e-%d", seq) }
	led := ledger.New(store, newID, clock)

	liability := model.MerchantLiabilityAccountID(tenant)
	customer := model.CustomerAccountID(tenant, "cust-1")

	// Two days old: outside the default one-day lookback.
	appendEntry(t, led, liability, customer, 100)
	current = now.Add(-time.Hour)
	appendEntry(t, led, liability, customer, 40)

	reporter := settlement.New(store, func() time.Time { return now }, settlement.Config{})
	if _, err := reporter.Run(context.Background(), nil, tenant); err != nil {
		t.Fatalf("Run: %v", err)
	}

	report, ok := store.GetSettlementReport(tenant, liability, now.Add(-24*time.Hour), now)
	if !ok {
		t.Fatal("report row missing")
	}
	if report.NetPoints.Int64() != -40 {
		t.Errorf("net_points = %s, want only the in-window entry (-40)", report.NetPoints)
	}
}

func TestRunNoLiabilityMovementWritesNothing(t *testing.T) {
	store := memory.New()
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	reporter := settlement.New(store, func() time.Time { return now }, settlement.Config{})
	n, err := reporter.Run(context.Background(), nil, tenant)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 0 {
		t.Errorf("rows written = %d, want 0", n)
	}
}
