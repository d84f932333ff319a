package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// InsertLot implements lot.Store.
func (s *Store) InsertLot(ctx context.Context, tx any, l model.PointLot) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO point_lots (lot_id, tenant, program_id, unit, customer_account, merchant_id, earn_entry_id, qty_total, qty_remaining, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.LotID, l.Tenant, l.ProgramID, l.Unit, l.CustomerAccount, l.MerchantID, l.EarnEntryID, l.QtyTotal, l.QtyRemaining, l.ExpiresAt, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert lot: %w", err)
	}
	return nil
}

// EligibleLots implements lot.Store: lots matching scope and filter, ordered
// ascending by (expires_at NULLS LAST, created_at) and locked for update so
// two concurrent redemptions never double-consume the same lot.
func (s *Store) EligibleLots(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) ([]model.PointLot, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT lot_id, tenant, program_id, unit, customer_account, merchant_id, earn_entry_id, qty_total, qty_remaining, expires_at, created_at
		FROM point_lots
		WHERE tenant = $1 AND customer_account = $2 AND program_id = $3 AND unit = $4
		  AND qty_remaining > 0
		  AND (expires_at IS NULL OR expires_at > $5)
		  AND (array_length($6::text[], 1) IS NULL OR merchant_id = ANY($6::text[]))
		  AND ($7::bigint IS NULL OR created_at > $5 - ($7::bigint * INTERVAL '1 day'))
		  AND ($8::bigint IS NULL OR created_at > $5 - ($8::bigint * INTERVAL '1 day'))
		ORDER BY expires_at ASC NULLS LAST, created_at ASC
		FOR UPDATE`,
		tenant, customerAccount, programID, unit, now, pq.Array(filter.MerchantIDs), filter.MaxAgeDays, filter.ExpiryDays)
	if err != nil {
		return nil, fmt.Errorf("postgres: eligible lots: %w", err)
	}
	defer rows.Close()

	var out []model.PointLot
	for rows.Next() {
		var l model.PointLot
		if err := rows.Scan(&l.LotID, &l.Tenant, &l.ProgramID, &l.Unit, &l.CustomerAccount, &l.MerchantID, &l.EarnEntryID, &l.QtyTotal, &l.QtyRemaining, &l.ExpiresAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan lot: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DecrementLot implements lot.Store.
func (s *Store) DecrementLot(ctx context.Context, tx any, lotID string, amt amount.Int) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE point_lots SET qty_remaining = qty_remaining - $2 WHERE lot_id = $1`,
		lotID, amt)
	if err != nil {
		return fmt.Errorf("postgres: decrement lot %s: %w", lotID, err)
	}
	return nil
}

// SumRemaining implements lot.Store and attribution.LotSumStore.
func (s *Store) SumRemaining(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) (amount.Int, error) {
	row := s.q(tx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(qty_remaining), 0)
		FROM point_lots
		WHERE tenant = $1 AND customer_account = $2 AND program_id = $3 AND unit = $4
		  AND (expires_at IS NULL OR expires_at > $5)
		  AND (array_length($6::text[], 1) IS NULL OR merchant_id = ANY($6::text[]))
		  AND ($7::bigint IS NULL OR created_at > $5 - ($7::bigint * INTERVAL '1 day'))
		  AND ($8::bigint IS NULL OR created_at > $5 - ($8::bigint * INTERVAL '1 day'))`,
		tenant, customerAccount, programID, unit, now, pq.Array(filter.MerchantIDs), filter.MaxAgeDays, filter.ExpiryDays)
	sum := amount.Zero()
	if err := row.Scan(&sum); err != nil {
		return amount.Int{}, fmt.Errorf("postgres: sum remaining: %w", err)
	}
	return sum, nil
}

// SumRemainingByMerchant implements attribution.LotSumStore.
func (s *Store) SumRemainingByMerchant(ctx context.Context, tx any, tenant, customerAccount, programID, unit string, now time.Time) (map[string]amount.Int, error) {
	rows, err := s.q(tx).QueryContext(ctx, `
		SELECT merchant_id, COALESCE(SUM(qty_remaining), 0)
		FROM point_lots
		WHERE tenant = $1 AND customer_account = $2 AND program_id = $3 AND unit = $4
		  AND (expires_at IS NULL OR expires_at > $5)
		GROUP BY merchant_id`,
		tenant, customerAccount, programID, unit, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: sum remaining by merchant: %w", err)
	}
	defer rows.Close()

	out := map[string]amount.Int{}
	for rows.Next() {
		var merchantID string
		sum := amount.Zero()
		if err := rows.Scan(&merchantID, &sum); err != nil {
			return nil, fmt.Errorf("postgres: scan merchant sum: %w", err)
		}
		out[merchantID] = sum
	}
	return out, rows.Err()
}
