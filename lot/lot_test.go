package lot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

type fakeStore struct {
	lots       []model.PointLot
	decrements map[string]amount.Int
}

func newFakeStore(lots ...model.PointLot) *fakeStore {
	return &fakeStore{lots: lots, decrements: map[string]amount.Int{}}
}

func (f *fakeStore) InsertLot(ctx context.Context, tx any, l model.PointLot) error {
	f.lots = append(f.lots, l)
	return nil
}

func (f *fakeStore) EligibleLots(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) ([]model.PointLot, error) {
	var out []model.PointLot
	for _, l := range f.lots {
		if l.Tenant != tenant || l.CustomerAccount != customerAccount || l.ProgramID != programID || l.Unit != unit {
			continue
		}
		if l.QtyRemaining.IsZero() {
			continue
		}
		if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeStore) DecrementLot(ctx context.Context, tx any, lotID string, amt amount.Int) error {
	for i, l := range f.lots {
		if l.LotID == lotID {
			f.lots[i].QtyRemaining = l.QtyRemaining.Sub(amt)
			f.decrements[lotID] = f.decrements[lotID].Add(amt)
			return nil
		}
	}
	return errors.New("lot not found")
}

func (f *fakeStore) SumRemaining(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) (amount.Int, error) {
	sum := amount.Zero()
	eligible, err := f.EligibleLots(ctx, tx, tenant, customerAccount, programID, unit, filter, now)
	if err != nil {
		return amount.Int{}, err
	}
	for _, l := range eligible {
		sum = sum.Add(l.QtyRemaining)
	}
	return sum, nil
}

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func TestCreateLotSetsTotalEqualsRemaining(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	l := New(store, fixedClock(frozen), func() string { return "lot-1" })

	got, err := l.CreateLot(context.Background(), nil, CreateParams{
		Tenant:          "tenant-a",
		ProgramID:       "prog-1",
		Unit:            "points",
		CustomerAccount: "tenant-a::acct::cust-1",
		Qty:             amount.FromInt64(100),
	})
	if err != nil {
		t.Fatalf("CreateLot: %v", err)
	}
	if got.LotID != "lot-1" {
		t.Errorf("got lot id %q", got.LotID)
	}
	if got.QtyTotal.Cmp(got.QtyRemaining) != 0 {
		t.Errorf("QtyTotal %s != QtyRemaining %s", got.QtyTotal, got.QtyRemaining)
	}
	if got.CreatedAt != frozen {
		t.Errorf("got CreatedAt %v, want %v", got.CreatedAt, frozen)
	}
}

func baseLot(id string, qty int64) model.PointLot {
	return model.PointLot{
		LotID:           id,
		Tenant:          "tenant-a",
		ProgramID:       "prog-1",
		Unit:            "points",
		CustomerAccount: "tenant-a::acct::cust-1",
		QtyTotal:        amount.FromInt64(qty),
		QtyRemaining:    amount.FromInt64(qty),
		CreatedAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestConsumeFIFOAcrossMultipleLots(t *testing.T) {
	store := newFakeStore(baseLot("lot-1", 30), baseLot("lot-2", 50))
	l := New(store, fixedClock(time.Now()), func() string { return "unused" })

	err := l.Consume(context.Background(), nil, ConsumeParams{
		Tenant:          "tenant-a",
		CustomerAccount: "tenant-a::acct::cust-1",
		ProgramID:       "prog-1",
		Unit:            "points",
		Amount:          amount.FromInt64(60),
	}, model.ConsumeFilter{})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if store.decrements["lot-1"].Cmp(amount.FromInt64(30)) != 0 {
		t.Errorf("lot-1 decremented by %s, want 30", store.decrements["lot-1"])
	}
	if store.decrements["lot-2"].Cmp(amount.FromInt64(30)) != 0 {
		t.Errorf("lot-2 decremented by %s, want 30", store.decrements["lot-2"])
	}
}

func TestConsumeZeroAmountIsNoop(t *testing.T) {
	store := newFakeStore(baseLot("lot-1", 30))
	l := New(store, fixedClock(time.Now()), func() string { return "unused" })

	err := l.Consume(context.Background(), nil, ConsumeParams{
		Tenant:          "tenant-a",
		CustomerAccount: "tenant-a::acct::cust-1",
		ProgramID:       "prog-1",
		Unit:            "points",
		Amount:          amount.Zero(),
	}, model.ConsumeFilter{})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(store.decrements) != 0 {
		t.Errorf("expected no decrements, got %v", store.decrements)
	}
}

func TestConsumeInsufficientLotsFails(t *testing.T) {
	store := newFakeStore(baseLot("lot-1", 10))
	l := New(store, fixedClock(time.Now()), func() string { return "unused" })

	err := l.Consume(context.Background(), nil, ConsumeParams{
		Tenant:          "tenant-a",
		CustomerAccount: "tenant-a::acct::cust-1",
		ProgramID:       "prog-1",
		Unit:            "points",
		Amount:          amount.FromInt64(50),
	}, model.ConsumeFilter{})
	if !errors.Is(err, ErrInsufficientLots) {
		t.Fatalf("got %v, want ErrInsufficientLots", err)
	}
}

func TestConsumeSkipsExpiredLots(t *testing.T) {
	expired := baseLot("lot-1", 100)
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expired.ExpiresAt = &past

	store := newFakeStore(expired, baseLot("lot-2", 40))
	l := New(store, fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), func() string { return "unused" })

	err := l.Consume(context.Background(), nil, ConsumeParams{
		Tenant:          "tenant-a",
		CustomerAccount: "tenant-a::acct::cust-1",
		ProgramID:       "prog-1",
		Unit:            "points",
		Amount:          amount.FromInt64(40),
	}, model.ConsumeFilter{})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if _, touched := store.decrements["lot-1"]; touched {
		t.Error("expired lot-1 should not have been consumed")
	}
	if store.decrements["lot-2"].Cmp(amount.FromInt64(40)) != 0 {
		t.Errorf("lot-2 decremented by %s, want 40", store.decrements["lot-2"])
	}
}

func TestSumEligibleIgnoresExpired(t *testing.T) {
	expired := baseLot("lot-1", 100)
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expired.ExpiresAt = &past

	store := newFakeStore(expired, baseLot("lot-2", 40))
	l := New(store, fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), func() string { return "unused" })

	sum, err := l.SumEligible(context.Background(), nil, SumParams{
		Tenant:          "tenant-a",
		CustomerAccount: "tenant-a::acct::cust-1",
		ProgramID:       "prog-1",
		Unit:            "points",
	}, model.ConsumeFilter{})
	if err != nil {
		t.Fatalf("SumEligible: %v", err)
	}
	if sum.Cmp(amount.FromInt64(40)) != 0 {
		t.Errorf("got %s, want 40", sum)
	}
}
