package memory

import (
	"context"
	"encoding/json"

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
func (s *Store) FindReceiptByIdempotency(_ context.Context, tenant, idempotencyKey string) (*model.Receipt, bool, error) {
	if idempotencyKey == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.receipts {
		if r.Tenant == tenant && r.IdempotencyKey == idempotencyKey {
			cp := *r
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// FindReceiptByFingerprint implements httpapi.Store's duplicate-detection
// fallback when no idempotency key is supplied.
func (s *Store) FindReceiptByFingerprint(_ context.Context, tenant, fingerprint string) (*model.Receipt, bool, error) {
	if fingerprint == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.receipts {
		if r.Tenant == tenant && r.Fingerprint == fingerprint {
			cp := *r
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// FindReceiptJobByReference returns the receipt_jobs row whose
// reference_id is receiptID, for reconstructing a 409's job handle.
func (s *Store) FindReceiptJobByReference(_ context.Context, tenant, receiptID string) (*model.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.receiptJobs {
		if j.Tenant == tenant && j.ReferenceID == receiptID {
			cp := *j
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// FindRedeemByIdempotency is the redeem-request analogue of
// FindReceiptByIdempotency.
func (s *Store) FindRedeemByIdempotency(_ context.Context, tenant, idempotencyKey string) (*model.RedeemRequest, bool, error) {
	if idempotencyKey == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.redeems {
		if r.Tenant == tenant && r.IdempotencyKey == idempotencyKey {
			cp := *r
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// FindRedeemJobByReference is the redeem-request analogue of
// FindReceiptJobByReference.
func (s *Store) FindRedeemJobByReference(_ context.Context, tenant, requestID string) (*model.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.redeemJobs {
		if j.Tenant == tenant && j.ReferenceID == requestID {
			cp := *j
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// AccountBalances implements httpapi.Store: every (program_id, unit) this
// account has nonzero or any ledger activity under, optionally filtered to
// one program_id.
func (s *Store) AccountBalances(_ context.Context, tenant, accountID, programID string) ([]httpapi.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct{ programID, unit string }
	sums := map[key]int64{}
	order := []key{}
	for entryID, lines := range s.lines {
		j, ok := s.journals[entryID]
		if !ok || j.Tenant != tenant {
			continue
		}
		if programID != "" && j.ProgramID != programID {
			continue
		}
		for _, l := range lines {
			if l.AccountID != accountID {
				continue
			}
			k := key{j.ProgramID, l.Unit}
			if _, seen := sums[k]; !seen {
				order = append(order, k)
			}
			sums[k] += l.Credit.Int64() - l.Debit.Int64()
		}
	}

	out := make([]httpapi.Balance, 0, len(order))
	for _, k := range order {
		out = append(out, httpapi.Balance{ProgramID: k.programID, Unit: k.unit, Qty: sums[k]})
	}
	return out, nil
}
