package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/httpapi"
	"github.com/loyaltyledger/engine/jobproc"
	"github.com/loyaltyledger/engine/model"
)

// jobTable implements jobproc.JobStore against one of the two structurally
// identical job tables, parameterized by table name and JobKind the same
// way store/memory's jobTable is parameterized by which map it owns.
type jobTable struct {
	s     *Store
	table string
	kind  model.JobKind
}

// ReceiptJobs returns the jobproc.JobStore view over receipt_jobs.
func (s *Store) ReceiptJobs() jobproc.JobStore {
	return &jobTable{s: s, table: "receipt_jobs", kind: model.JobKindReceipt}
}

// RedeemJobs returns the jobproc.JobStore view over redeem_jobs.
func (s *Store) RedeemJobs() jobproc.JobStore {
	return &jobTable{s: s, table: "redeem_jobs", kind: model.JobKindRedeem}
}

// PickNextDue implements jobproc.JobStore: selects the oldest pending-and-due
// row, locking it against other workers with SKIP LOCKED, transitions it to
// processing, and increments attempts, all within tx.
func (t *jobTable) PickNextDue(ctx context.Context, tx any, now time.Time) (*model.Job, bool, error) {
	q := t.s.q(tx)
	row := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT job_id FROM %s
		WHERE status = $1 AND available_at <= $2
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`, t.table), model.JobPending, now)

	var jobID string
	if err := row.Scan(&jobID); err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("postgres: pick next due %s: %w", t.table, err)
	}

	updated := q.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1, attempts = attempts + 1
		WHERE job_id = $2
		RETURNING job_id, tenant, reference_id, status, attempts, last_error, result_summary, available_at, completed_at, created_at`, t.table),
		model.JobProcessing, jobID)

	j := model.Job{Kind: t.kind}
	if err := updated.Scan(&j.JobID, &j.Tenant, &j.ReferenceID, &j.Status, &j.Attempts, &j.LastError, &j.ResultSummary, &j.AvailableAt, &j.CompletedAt, &j.CreatedAt); err != nil {
		return nil, false, fmt.Errorf("postgres: mark processing %s: %w", t.table, err)
	}
	return &j, true, nil
}

// Complete implements jobproc.JobStore.
func (t *jobTable) Complete(ctx context.Context, tx any, jobID string, now time.Time, summary json.RawMessage) error {
	_, err := t.s.q(tx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1, result_summary = $2, completed_at = $3 WHERE job_id = $4`, t.table),
		model.JobCompleted, []byte(summary), now, jobID)
	if err != nil {
		return fmt.Errorf("postgres: complete %s %s: %w", t.table, jobID, err)
	}
	return nil
}

// Fail implements jobproc.JobStore. It runs after the unit-of-work
// transaction was rolled back, taking PickNextDue's attempts increment with
// it, so it increments attempts again.
func (t *jobTable) Fail(ctx context.Context, tx any, jobID string, now time.Time, lastErr string) error {
	_, err := t.s.q(tx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1, last_error = $2, completed_at = $3, attempts = attempts + 1 WHERE job_id = $4`, t.table),
		model.JobFailed, lastErr, now, jobID)
	if err != nil {
		return fmt.Errorf("postgres: fail %s %s: %w", t.table, jobID, err)
	}
	return nil
}

// Reschedule implements jobproc.JobStore. Like Fail, it increments attempts
// again because PickNextDue's increment was rolled back with the failed unit.
func (t *jobTable) Reschedule(ctx context.Context, tx any, jobID string, availableAt time.Time, lastErr string) error {
	_, err := t.s.q(tx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1, available_at = $2, last_error = $3, attempts = attempts + 1 WHERE job_id = $4`, t.table),
		model.JobPending, availableAt, lastErr, jobID)
	if err != nil {
		return fmt.Errorf("postgres: reschedule %s %s: %w", t.table, jobID, err)
	}
	return nil
}

// ReclaimStale implements jobproc.JobStore: reverts processing rows whose
// created_at predates olderThan back to pending, for a worker that died
// mid-job. The row records no pick time, so age is measured from creation.
func (t *jobTable) ReclaimStale(ctx context.Context, tx any, olderThan time.Time) (int, error) {
	result, err := t.s.q(tx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1 WHERE status = $2 AND created_at < $3`, t.table),
		model.JobPending, model.JobProcessing, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres: reclaim stale %s: %w", t.table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: reclaim stale %s rows affected: %w", t.table, err)
	}
	return int(n), nil
}

// EnqueueReceiptJob inserts a pending receipt_jobs row; used by ingress.
func (s *Store) EnqueueReceiptJob(ctx context.Context, j model.Job) error {
	return s.enqueueJob(ctx, "receipt_jobs", j)
}

// EnqueueRedeemJob inserts a pending redeem_jobs row; used by ingress.
func (s *Store) EnqueueRedeemJob(ctx context.Context, j model.Job) error {
	return s.enqueueJob(ctx, "redeem_jobs", j)
}

func (s *Store) enqueueJob(ctx context.Context, table string, j model.Job) error {
	if j.Status == "" {
		j.Status = model.JobPending
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (job_id, tenant, reference_id, status, attempts, available_at, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)`, table),
		j.JobID, j.Tenant, j.ReferenceID, j.Status, j.AvailableAt, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: enqueue %s: %w", table, err)
	}
	return nil
}

// GetReceiptJob returns one receipt_jobs row, for status polling.
func (s *Store) GetReceiptJob(ctx context.Context, tenant, jobID string) (*model.Job, bool, error) {
	return s.getJob(ctx, "receipt_jobs", tenant, jobID)
}

// GetRedeemJob returns one redeem_jobs row, for status polling.
func (s *Store) GetRedeemJob(ctx context.Context, tenant, jobID string) (*model.Job, bool, error) {
	return s.getJob(ctx, "redeem_jobs", tenant, jobID)
}

func (s *Store) getJob(ctx context.Context, table, tenant, jobID string) (*model.Job, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT job_id, tenant, reference_id, status, attempts, last_error, result_summary, available_at, completed_at, created_at
		FROM %s WHERE job_id = $1 AND tenant = $2`, table), jobID, tenant)
	var j model.Job
	if err := row.Scan(&j.JobID, &j.Tenant, &j.ReferenceID, &j.Status, &j.Attempts, &j.LastError, &j.ResultSummary, &j.AvailableAt, &j.CompletedAt, &j.CreatedAt); err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("postgres: get %s %s: %w", table, jobID, err)
	}
	return &j, true, nil
}

// Get implements jobproc.ReceiptStore.
func (s *Store) Get(ctx context.Context, tx any, tenant, receiptID string) (*model.Receipt, bool, error) {
	row := s.q(tx).QueryRowContext(ctx, `
		SELECT receipt_id, tenant, idempotency_key, fingerprint, merchant_id, store_id, account_ref, program_id, grand_total_cents, processor_txn_id, issued_at, payload, created_at
		FROM receipts WHERE receipt_id = $1 AND tenant = $2`, receiptID, tenant)
	var r model.Receipt
	if err := row.Scan(&r.ReceiptID, &r.Tenant, &r.IdempotencyKey, &r.Fingerprint, &r.MerchantID, &r.StoreID, &r.AccountRef, &r.ProgramID, &r.GrandTotalCents, &r.ProcessorTxnID, &r.IssuedAt, &r.Payload, &r.CreatedAt); err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("postgres: get receipt %s: %w", receiptID, err)
	}
	return &r, true, nil
}

// RollingSpendCents implements jobproc.ReceiptStore.
func (s *Store) RollingSpendCents(ctx context.Context, tx any, tenant, merchantID, customerAccountRef string, windowStart, windowEnd time.Time) (amount.Int, error) {
	row := s.q(tx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(grand_total_cents), 0) FROM receipts
		WHERE tenant = $1 AND merchant_id = $2 AND account_ref = $3
		  AND issued_at >= $4 AND issued_at < $5`,
		tenant, merchantID, customerAccountRef, windowStart, windowEnd)
	sum := amount.Zero()
	if err := row.Scan(&sum); err != nil {
		return amount.Int{}, fmt.Errorf("postgres: rolling spend: %w", err)
	}
	return sum, nil
}

// PutReceipt inserts one immutable receipt row; used by ingress. A
// concurrent request racing on the same (tenant, idempotency_key) surfaces
// as ErrIdempotencyConflict so the caller can fall back to its lookup path
// instead of a generic 500.
func (s *Store) PutReceipt(ctx context.Context, r model.Receipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (receipt_id, tenant, idempotency_key, fingerprint, merchant_id, store_id, account_ref, program_id, grand_total_cents, processor_txn_id, issued_at, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ReceiptID, r.Tenant, r.IdempotencyKey, r.Fingerprint, r.MerchantID, r.StoreID, r.AccountRef, r.ProgramID, r.GrandTotalCents, r.ProcessorTxnID, r.IssuedAt, []byte(r.Payload), r.CreatedAt)
	if isUniqueViolation(err) {
		return httpapi.ErrIdempotencyConflict
	}
	if err != nil {
		return fmt.Errorf("postgres: put receipt %s: %w", r.ReceiptID, err)
	}
	return nil
}

// PutRedeemRequest inserts one immutable redeem request row; used by
// ingress. See PutReceipt for the ErrIdempotencyConflict contract.
func (s *Store) PutRedeemRequest(ctx context.Context, r model.RedeemRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO redeem_requests (request_id, tenant, idempotency_key, account_id, program_id, unit, qty, memo, burn_merchant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.RequestID, r.Tenant, r.IdempotencyKey, r.AccountID, r.ProgramID, r.Unit, r.Qty, r.Memo, r.BurnMerchantID, r.CreatedAt)
	if isUniqueViolation(err) {
		return httpapi.ErrIdempotencyConflict
	}
	if err != nil {
		return fmt.Errorf("postgres: put redeem request %s: %w", r.RequestID, err)
	}
	return nil
}

// RedeemStoreView returns the jobproc.RedeemStore view over this Store.
// Get's signature differs from ReceiptStore.Get, so it lives on a separate
// type the same way store/memory splits redeemStore out for the same reason.
func (s *Store) RedeemStoreView() jobproc.RedeemStore { return &redeemStore{s: s} }

type redeemStore struct{ s *Store }

func (r *redeemStore) Get(ctx context.Context, tx any, tenant, requestID string) (*model.RedeemRequest, bool, error) {
	row := r.s.q(tx).QueryRowContext(ctx, `
		SELECT request_id, tenant, idempotency_key, account_id, program_id, unit, qty, memo, burn_merchant_id, created_at
		FROM redeem_requests WHERE request_id = $1 AND tenant = $2`, requestID, tenant)
	var req model.RedeemRequest
	if err := row.Scan(&req.RequestID, &req.Tenant, &req.IdempotencyKey, &req.AccountID, &req.ProgramID, &req.Unit, &req.Qty, &req.Memo, &req.BurnMerchantID, &req.CreatedAt); err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("postgres: get redeem request %s: %w", requestID, err)
	}
	return &req, true, nil
}

// Insert implements jobproc.NotifyStore.
func (s *Store) Insert(ctx context.Context, tx any, n model.JobNotification) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO job_notifications (notification_id, tenant, job_type, job_id, reference_id, status, summary, error, available_at, delivered_at, delivery_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11)`,
		n.NotificationID, n.Tenant, n.JobType, n.JobID, n.ReferenceID, n.Status, []byte(n.Summary), n.Error, n.AvailableAt, n.DeliveredAt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert notification: %w", err)
	}
	return nil
}

// TierStoreView returns the jobproc.TierStore view over this Store, split
// out for the same Get-name-collision reason as RedeemStoreView.
func (s *Store) TierStoreView() jobproc.TierStore { return &tierStore{s: s} }

type tierStore struct{ s *Store }

func (t *tierStore) Upsert(ctx context.Context, tx any, c model.CustomerTier) error {
	_, err := t.s.q(tx).ExecContext(ctx, `
		INSERT INTO customer_tiers (tier_id, tenant, merchant_id, customer_account, tier_name, window_days, window_start, window_end, rolling_spend_cents, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant, merchant_id, customer_account) DO UPDATE SET
			tier_name = EXCLUDED.tier_name,
			window_days = EXCLUDED.window_days,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			rolling_spend_cents = EXCLUDED.rolling_spend_cents,
			updated_at = EXCLUDED.updated_at`,
		c.TierID, c.Tenant, c.MerchantID, c.CustomerAccount, c.TierName, c.WindowDays, c.WindowStart, c.WindowEnd, c.RollingSpendCents, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert tier: %w", err)
	}
	return nil
}

func (t *tierStore) Get(ctx context.Context, tx any, tenant, merchantID, customerAccount string) (*model.CustomerTier, error) {
	row := t.s.q(tx).QueryRowContext(ctx, `
		SELECT tier_id, tenant, merchant_id, customer_account, tier_name, window_days, window_start, window_end, rolling_spend_cents, updated_at
		FROM customer_tiers WHERE tenant = $1 AND merchant_id = $2 AND customer_account = $3`,
		tenant, merchantID, customerAccount)
	var c model.CustomerTier
	if err := row.Scan(&c.TierID, &c.Tenant, &c.MerchantID, &c.CustomerAccount, &c.TierName, &c.WindowDays, &c.WindowStart, &c.WindowEnd, &c.RollingSpendCents, &c.UpdatedAt); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("postgres: get tier: %w", err)
	}
	return &c, nil
}
