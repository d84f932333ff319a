package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/settlement"
)

const merchantLiabilitySuffix = "::merchant_liability"

// AggregateMerchantLiability implements settlement.Store: Σcredits−Σdebits
// over [periodStart, periodEnd) for every account_id ending in
// "::merchant_liability" under tenant, grouped by account_id. The suffix
// match is a LIKE clause in SQL against merchantLiabilitySuffix.
func (s *Store) AggregateMerchantLiability(ctx context.Context, tx any, tenant string, periodStart, periodEnd time.Time) ([]settlement.Aggregate, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT l.account_id, SUM(l.credit - l.debit)
		FROM ledger_lines l
		JOIN ledger_journals j ON j.entry_id = l.entry_id
		WHERE j.tenant = $1 AND j.created_at >= $2 AND j.created_at < $3
		  AND l.account_id LIKE '%' || $4
		GROUP BY l.account_id`,
		tenant, periodStart, periodEnd, merchantLiabilitySuffix)
	if err != nil {
		return nil, fmt.Errorf("postgres: aggregate merchant liability: %w", err)
	}
	defer rows.Close()

	var out []settlement.Aggregate
	for rows.Next() {
		var account string
		net := amount.Zero()
		if err := rows.Scan(&account, &net); err != nil {
			return nil, fmt.Errorf("postgres: scan aggregate: %w", err)
		}
		out = append(out, settlement.Aggregate{MerchantAccount: account, NetPoints: net})
	}
	return out, rows.Err()
}

// UpsertReport implements settlement.Store.
func (s *Store) UpsertReport(ctx context.Context, tx any, tenant, merchantAccount string, periodStart, periodEnd time.Time, netPoints amount.Int, summary string) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO settlement_reports (tenant, merchant_account, period_start, period_end, net_points, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant, merchant_account, period_start, period_end) DO UPDATE SET
			net_points = EXCLUDED.net_points,
			summary = EXCLUDED.summary`,
		tenant, merchantAccount, periodStart, periodEnd, netPoints, summary)
	if err != nil {
		return fmt.Errorf("postgres: upsert settlement report: %w", err)
	}
	return nil
}

// GetSettlementReport returns one report row, for tests and the settlement
// read API.
func (s *Store) GetSettlementReport(ctx context.Context, tenant, merchantAccount string, periodStart, periodEnd time.Time) (*settlementReportRow, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant, merchant_account, period_start, period_end, net_points, summary
		FROM settlement_reports WHERE tenant = $1 AND merchant_account = $2 AND period_start = $3 AND period_end = $4`,
		tenant, merchantAccount, periodStart, periodEnd)
	var r settlementReportRow
	err := row.Scan(&r.Tenant, &r.MerchantAccount, &r.PeriodStart, &r.PeriodEnd, &r.NetPoints, &r.Summary)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: get settlement report: %w", err)
	}
	return &r, true, nil
}

type settlementReportRow struct {
	Tenant          string
	MerchantAccount string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	NetPoints       amount.Int
	Summary         string
}
