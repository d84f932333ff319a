// Package lot implements the per-earn point inventory: FIFO, expiry-aware
// consumption scoped by merchant and age, a handful of narrow store
// operations wrapped behind a small Go type.
package lot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// ErrInsufficientLots is returned by Consume when the eligible lots cannot
// fully cover the requested amount. The caller's transaction must abort so
// no partial consumption persists.
var ErrInsufficientLots = errors.New("lot: insufficient lots")

// CreateParams are the inputs to CreateLot.
type CreateParams struct {
	Tenant          string
	ProgramID       string
	Unit            string
	CustomerAccount string
	MerchantID      string // optional
	EarnEntryID     string
	Qty             amount.Int
	ExpiresAt       *time.Time
}

// ConsumeParams are the inputs to Consume.
type ConsumeParams struct {
	Tenant          string
	CustomerAccount string
	ProgramID       string
	Unit            string
	Amount          amount.Int
}

// SumParams are the inputs to SumEligible. Merchant/age/expiry scoping is
// carried separately via model.ConsumeFilter.
type SumParams struct {
	Tenant          string
	CustomerAccount string
	ProgramID       string
	Unit            string
}

// Store is the persistence surface this package depends on.
type Store interface {
	InsertLot(ctx context.Context, tx any, l model.PointLot) error
	// EligibleLots returns lots matching scope and filter, ordered ascending
	// by (expires_at NULLS LAST, created_at), locked for update.
	EligibleLots(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) ([]model.PointLot, error)
	// DecrementLot subtracts amt from qty_remaining for one lot.
	DecrementLot(ctx context.Context, tx any, lotID string, amt amount.Int) error
	// SumRemaining aggregates qty_remaining under scope/filter.
	SumRemaining(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) (amount.Int, error)
}

// Clock supplies wall time; tests inject a frozen clock the way the job
// processor's helpers do.
type Clock func() time.Time

// IDGenerator supplies fresh lot identifiers.
type IDGenerator func() string

// Lots wraps the persistence layer with the wall clock and ID generator
// every lot operation needs.
type Lots struct {
	store Store
	now   Clock
	newID IDGenerator
}

// New constructs a Lots.
func New(store Store, now Clock, newID IDGenerator) *Lots {
	return &Lots{store: store, now: now, newID: newID}
}

// CreateLot inserts one row with qty_total = qty_remaining = qty.
func (l *Lots) CreateLot(ctx context.Context, tx any, p CreateParams) (model.PointLot, error) {
	lot := model.PointLot{
		LotID:           l.newID(),
		Tenant:          p.Tenant,
		ProgramID:       p.ProgramID,
		Unit:            p.Unit,
		CustomerAccount: p.CustomerAccount,
		MerchantID:      p.MerchantID,
		EarnEntryID:     p.EarnEntryID,
		QtyTotal:        p.Qty,
		QtyRemaining:    p.Qty,
		ExpiresAt:       p.ExpiresAt,
		CreatedAt:       l.now(),
	}
	if err := l.store.InsertLot(ctx, tx, lot); err != nil {
		return model.PointLot{}, fmt.Errorf("lot: create: %w", err)
	}
	return lot, nil
}

// Consume atomically decrements eligible lots until amount is fully
// satisfied, in FIFO order. It fails with ErrInsufficientLots if the scope
// cannot cover the request; callers must ensure the surrounding transaction
// aborts in that case so no partial consumption persists.
func (l *Lots) Consume(ctx context.Context, tx any, p ConsumeParams, filter model.ConsumeFilter) error {
	if p.Amount.IsZero() {
		return nil
	}
	now := l.now()
	lots, err := l.store.EligibleLots(ctx, tx, p.Tenant, p.CustomerAccount, p.ProgramID, p.Unit, filter, now)
	if err != nil {
		return fmt.Errorf("lot: consume: load eligible: %w", err)
	}
	remaining := p.Amount
	for _, lo := range lots {
		if remaining.IsZero() {
			break
		}
		take := lo.QtyRemaining.Min(remaining)
		if take.IsZero() {
			continue
		}
		if err := l.store.DecrementLot(ctx, tx, lo.LotID, take); err != nil {
			return fmt.Errorf("lot: consume: decrement %s: %w", lo.LotID, err)
		}
		remaining = remaining.Sub(take)
	}
	if !remaining.IsZero() {
		return fmt.Errorf("%w: %s remaining uncovered", ErrInsufficientLots, remaining.String())
	}
	return nil
}

// SumEligible returns Σqty_remaining under scope and non-expired predicate.
func (l *Lots) SumEligible(ctx context.Context, tx any, p SumParams, filter model.ConsumeFilter) (amount.Int, error) {
	sum, err := l.store.SumRemaining(ctx, tx, p.Tenant, p.CustomerAccount, p.ProgramID, p.Unit, filter, l.now())
	if err != nil {
		return amount.Int{}, fmt.Errorf("lot: sum eligible: %w", err)
	}
	return sum, nil
}
