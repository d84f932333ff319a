package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/loyaltyledger/engine/httpapi"
	"github.com/loyaltyledger/engine/model"
)

// HTTPStore adapts Store to httpapi.Store. It exists because httpapi.Store
// declares a program-config-shaped Get/Put alongside the rest of the
// ingress surface, and Store's own Get is already jobproc.ReceiptStore's —
// embedding programConfigStore's Get/Put here shadows the promoted one.
type HTTPStore struct {
	*Store
}

// AsHTTPStore returns the httpapi.Store view over this Store.
func (s *Store) AsHTTPStore() *HTTPStore { return &HTTPStore{Store: s} }

func (h *HTTPStore) Get(ctx context.Context, tx any, tenant, programID string) (json.RawMessage, bool, error) {
	return h.Store.ProgramConfigStoreView().Get(ctx, tx, tenant, programID)
}

func (h *HTTPStore) Put(ctx context.Context, tenant, programID string, cfg json.RawMessage) error {
	return h.Store.ProgramConfigStoreView().Put(ctx, tenant, programID, cfg)
}

// FindReceiptByIdempotency implements httpapi.Store's idempotency lookup
// for POST /v1/receipts.
func (s *Store) FindReceiptByIdempotency(ctx context.Context, tenant, idempotencyKey string) (*model.Receipt, bool, error) {
	if idempotencyKey == "" {
		return nil, false, nil
	}
	return s.findReceipt(ctx, "idempotency_key", tenant, idempotencyKey)
}

// FindReceiptByFingerprint implements httpapi.Store's duplicate-detection
// fallback when no idempotency key is supplied.
func (s *Store) FindReceiptByFingerprint(ctx context.Context, tenant, fingerprint string) (*model.Receipt, bool, error) {
	if fingerprint == "" {
		return nil, false, nil
	}
	return s.findReceipt(ctx, "fingerprint", tenant, fingerprint)
}

func (s *Store) findReceipt(ctx context.Context, column, tenant, value string) (*model.Receipt, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT receipt_id, tenant, idempotency_key, fingerprint, merchant_id, store_id, account_ref, program_id, grand_total_cents, processor_txn_id, issued_at, payload, created_at
		FROM receipts WHERE tenant = $1 AND %s = $2`, column), tenant, value)
	var r model.Receipt
	err := row.Scan(&r.ReceiptID, &r.Tenant, &r.IdempotencyKey, &r.Fingerprint, &r.MerchantID, &r.StoreID, &r.AccountRef, &r.ProgramID, &r.GrandTotalCents, &r.ProcessorTxnID, &r.IssuedAt, &r.Payload, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: find receipt by %s: %w", column, err)
	}
	return &r, true, nil
}

// FindReceiptJobByReference returns the receipt_jobs row whose
// reference_id is receiptID, for reconstructing a 409's job handle.
func (s *Store) FindReceiptJobByReference(ctx context.Context, tenant, receiptID string) (*model.Job, bool, error) {
	return s.findJobByReference(ctx, "receipt_jobs", tenant, receiptID)
}

// FindRedeemJobByReference is the redeem-request analogue of
// FindReceiptJobByReference.
func (s *Store) FindRedeemJobByReference(ctx context.Context, tenant, requestID string) (*model.Job, bool, error) {
	return s.findJobByReference(ctx, "redeem_jobs", tenant, requestID)
}

func (s *Store) findJobByReference(ctx context.Context, table, tenant, referenceID string) (*model.Job, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT job_id, tenant, reference_id, status, attempts, last_error, result_summary, available_at, completed_at, created_at
		FROM %s WHERE tenant = $1 AND reference_id = $2`, table), tenant, referenceID)
	var j model.Job
	err := row.Scan(&j.JobID, &j.Tenant, &j.ReferenceID, &j.Status, &j.Attempts, &j.LastError, &j.ResultSummary, &j.AvailableAt, &j.CompletedAt, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: find %s by reference: %w", table, err)
	}
	return &j, true, nil
}

// FindRedeemByIdempotency is the redeem-request analogue of
// FindReceiptByIdempotency.
func (s *Store) FindRedeemByIdempotency(ctx context.Context, tenant, idempotencyKey string) (*model.RedeemRequest, bool, error) {
	if idempotencyKey == "" {
		return nil, false, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, tenant, idempotency_key, account_id, program_id, unit, qty, memo, burn_merchant_id, created_at
		FROM redeem_requests WHERE tenant = $1 AND idempotency_key = $2`, tenant, idempotencyKey)
	var req model.RedeemRequest
	err := row.Scan(&req.RequestID, &req.Tenant, &req.IdempotencyKey, &req.AccountID, &req.ProgramID, &req.Unit, &req.Qty, &req.Memo, &req.BurnMerchantID, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: find redeem by idempotency: %w", err)
	}
	return &req, true, nil
}

// AccountBalances implements httpapi.Store: every (program_id, unit) this
// account has any ledger activity under, optionally filtered to one
// program_id, read outside any transaction (committed-state balance API).
func (s *Store) AccountBalances(ctx context.Context, tenant, accountID, programID string) ([]httpapi.Balance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.program_id, l.unit, COALESCE(SUM(l.credit - l.debit), 0)
		FROM ledger_lines l
		JOIN ledger_journals j ON j.entry_id = l.entry_id
		WHERE j.tenant = $1 AND l.account_id = $2 AND ($3 = '' OR j.program_id = $3)
		GROUP BY j.program_id, l.unit`,
		tenant, accountID, programID)
	if err != nil {
		return nil, fmt.Errorf("postgres: account balances: %w", err)
	}
	defer rows.Close()

	var out []httpapi.Balance
	for rows.Next() {
		var b httpapi.Balance
		if err := rows.Scan(&b.ProgramID, &b.Unit, &b.Qty); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
