// Package settlement implements periodic merchant-liability aggregation:
// pick a window, aggregate ledger rows into a report, upsert.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/metrics"
)

// Aggregate is one (tenant, merchant_account) row's net point movement over
// a settlement window.
type Aggregate struct {
	MerchantAccount string
	NetPoints       amount.Int
}

// Store is the persistence surface this package depends on.
type Store interface {
	// AggregateMerchantLiability sums credits minus debits over
	// [periodStart, periodEnd) for every account_id ending in
	// "::merchant_liability" under tenant, grouped by account_id.
	AggregateMerchantLiability(ctx context.Context, tx any, tenant string, periodStart, periodEnd time.Time) ([]Aggregate, error)
	// UpsertReport writes one settlement row, keyed by
	// (tenant, merchant_account, period_start, period_end).
	UpsertReport(ctx context.Context, tx any, tenant, merchantAccount string, periodStart, periodEnd time.Time, netPoints amount.Int, summary string) error
}

// Clock supplies wall time.
type Clock func() time.Time

// Config tunes the reporter's window.
type Config struct {
	Lookback time.Duration // default 24h
}

func (c Config) withDefaults() Config {
	if c.Lookback <= 0 {
		c.Lookback = 24 * time.Hour
	}
	return c
}

// Reporter drives one scheduled settlement run.
type Reporter struct {
	store Store
	now   Clock
	cfg   Config
}

// New constructs a Reporter.
func New(store Store, now Clock, cfg Config) *Reporter {
	return &Reporter{store: store, now: now, cfg: cfg.withDefaults()}
}

// Run aggregates the most recent window ending at "now" and upserts one
// SettlementReport row per merchant account with nonzero movement,
// returning the number of rows written.
func (r *Reporter) Run(ctx context.Context, tx any, tenant string) (int, error) {
	runStart := r.now()
	defer func() { metrics.SettlementRunDuration.Observe(r.now().Sub(runStart).Seconds()) }()

	end := r.now()
	start := end.Add(-r.cfg.Lookback)

	aggregates, err := r.store.AggregateMerchantLiability(ctx, tx, tenant, start, end)
	if err != nil {
		return 0, fmt.Errorf("settlement: aggregate: %w", err)
	}

	n := 0
	for _, agg := range aggregates {
		summary := fmt.Sprintf("net_points=%s window=[%s,%s)", agg.NetPoints, start.Format(time.RFC3339), end.Format(time.RFC3339))
		if err := r.store.UpsertReport(ctx, tx, tenant, agg.MerchantAccount, start, end, agg.NetPoints, summary); err != nil {
			return n, fmt.Errorf("settlement: upsert %s: %w", agg.MerchantAccount, err)
		}
		n++
	}
	return n, nil
}
