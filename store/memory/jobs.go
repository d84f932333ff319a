package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/jobproc"
	"github.com/loyaltyledger/engine/model"
)

// jobTable implements jobproc.JobStore against one of Store's two job maps.
// The receipt_jobs and redeem_jobs tables are structurally identical, so
// one Go type backs both, parameterized by which map and JobKind it owns —
// mirroring how store/postgres implements the interface twice against two
// table names rather than duplicating logic.
type jobTable struct {
	s    *Store
	jobs map[string]*model.Job
	kind model.JobKind
}

// ReceiptJobs returns the jobproc.JobStore view over the receipt_jobs table.
func (s *Store) ReceiptJobs() jobproc.JobStore {
	return &jobTable{s: s, jobs: s.receiptJobs, kind: model.JobKindReceipt}
}

// RedeemJobs returns the jobproc.JobStore view over the redeem_jobs table.
func (s *Store) RedeemJobs() jobproc.JobStore {
	return &jobTable{s: s, jobs: s.redeemJobs, kind: model.JobKindRedeem}
}

// PickNextDue implements jobproc.JobStore.
func (t *jobTable) PickNextDue(_ context.Context, _ any, now time.Time) (*model.Job, bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	var picked *model.Job
	for _, j := range t.jobs {
		if j.Status != model.JobPending || j.AvailableAt.After(now) {
			continue
		}
		if picked == nil || j.CreatedAt.Before(picked.CreatedAt) {
			picked = j
		}
	}
	if picked == nil {
		return nil, false, nil
	}
	picked.Status = model.JobProcessing
	picked.Attempts++
	cp := *picked
	return &cp, true, nil
}

// Complete implements jobproc.JobStore.
func (t *jobTable) Complete(_ context.Context, _ any, jobID string, now time.Time, summary json.RawMessage) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	j, ok := t.jobs[jobID]
	if !ok {
		return nil
	}
	j.Status = model.JobCompleted
	j.ResultSummary = summary
	j.CompletedAt = &now
	return nil
}

// Fail implements jobproc.JobStore.
func (t *jobTable) Fail(_ context.Context, _ any, jobID string, now time.Time, lastErr string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	j, ok := t.jobs[jobID]
	if !ok {
		return nil
	}
	j.Status = model.JobFailed
	j.LastError = lastErr
	j.CompletedAt = &now
	return nil
}

// Reschedule implements jobproc.JobStore.
func (t *jobTable) Reschedule(_ context.Context, _ any, jobID string, availableAt time.Time, lastErr string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	j, ok := t.jobs[jobID]
	if !ok {
		return nil
	}
	j.Status = model.JobPending
	j.AvailableAt = availableAt
	j.LastError = lastErr
	return nil
}

// ReclaimStale implements jobproc.JobStore.
func (t *jobTable) ReclaimStale(_ context.Context, _ any, olderThan time.Time) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for _, j := range t.jobs {
		if j.Status == model.JobProcessing && j.CreatedAt.Before(olderThan) {
			j.Status = model.JobPending
			n++
		}
	}
	return n, nil
}

// EnqueueReceiptJob inserts a pending receipt_jobs row; used by ingress
// handlers and tests, not by jobproc itself.
func (s *Store) EnqueueReceiptJob(_ context.Context, j model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Kind = model.JobKindReceipt
	if j.JobID == "" {
		j.JobID = s.nextID("job_")
	}
	if j.Status == "" {
		j.Status = model.JobPending
	}
	s.receiptJobs[j.JobID] = &j
	return nil
}

// EnqueueRedeemJob inserts a pending redeem_jobs row; used by ingress
// handlers and tests, not by jobproc itself.
func (s *Store) EnqueueRedeemJob(_ context.Context, j model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Kind = model.JobKindRedeem
	if j.JobID == "" {
		j.JobID = s.nextID("job_")
	}
	if j.Status == "" {
		j.Status = model.JobPending
	}
	s.redeemJobs[j.JobID] = &j
	return nil
}

// GetReceiptJob returns a copy of one receipt_jobs row, for status polling.
func (s *Store) GetReceiptJob(_ context.Context, tenant, jobID string) (*model.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.receiptJobs[jobID]
	if !ok || j.Tenant != tenant {
		return nil, false, nil
	}
	cp := *j
	return &cp, true, nil
}

// GetRedeemJob returns a copy of one redeem_jobs row, for status polling.
func (s *Store) GetRedeemJob(_ context.Context, tenant, jobID string) (*model.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.redeemJobs[jobID]
	if !ok || j.Tenant != tenant {
		return nil, false, nil
	}
	cp := *j
	return &cp, true, nil
}

// Get implements jobproc.ReceiptStore.
func (s *Store) Get(_ context.Context, _ any, tenant, receiptID string) (*model.Receipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[receiptID]
	if !ok || r.Tenant != tenant {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// RollingSpendCents implements jobproc.ReceiptStore.
func (s *Store) RollingSpendCents(_ context.Context, _ any, tenant, merchantID, customerAccountRef string, windowStart, windowEnd time.Time) (amount.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := amount.Zero()
	for _, r := range s.receipts {
		if r.Tenant != tenant || r.MerchantID != merchantID || r.AccountRef != customerAccountRef {
			continue
		}
		if r.IssuedAt.Before(windowStart) || !r.IssuedAt.Before(windowEnd) {
			continue
		}
		sum = sum.Add(r.GrandTotalCents)
	}
	return sum, nil
}

// PutReceipt inserts one immutable receipt row; used by ingress handlers.
func (s *Store) PutReceipt(_ context.Context, r model.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.receipts[r.ReceiptID] = &cp
	return nil
}

// PutRedeemRequest inserts one immutable redeem request row; used by
// ingress handlers.
func (s *Store) PutRedeemRequest(_ context.Context, r model.RedeemRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.redeems[r.RequestID] = &cp
	return nil
}

// redeemStore implements jobproc.RedeemStore. It is a separate type from
// Store because RedeemStore.Get and ReceiptStore.Get have different
// signatures and Go cannot overload a method name on one receiver.
type redeemStore struct{ s *Store }

// RedeemStoreView returns the jobproc.RedeemStore view over this Store.
func (s *Store) RedeemStoreView() jobproc.RedeemStore { return &redeemStore{s: s} }

func (r *redeemStore) Get(_ context.Context, _ any, tenant, requestID string) (*model.RedeemRequest, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.redeems[requestID]
	if !ok || req.Tenant != tenant {
		return nil, false, nil
	}
	cp := *req
	return &cp, true, nil
}

// Insert implements jobproc.NotifyStore.
func (s *Store) Insert(_ context.Context, _ any, n model.JobNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := n
	s.notifications = append(s.notifications, &cp)
	return nil
}

// tierStore implements jobproc.TierStore, for the same reason redeemStore
// exists: its Get collides in name (not signature) with ReceiptStore.Get.
type tierStore struct{ s *Store }

// TierStoreView returns the jobproc.TierStore view over this Store.
func (s *Store) TierStoreView() jobproc.TierStore { return &tierStore{s: s} }

func (t *tierStore) Upsert(_ context.Context, _ any, c model.CustomerTier) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	key := tierKey{c.Tenant, c.MerchantID, c.CustomerAccount}
	cp := c
	t.s.tiers[key] = &cp
	return nil
}

func (t *tierStore) Get(_ context.Context, _ any, tenant, merchantID, customerAccount string) (*model.CustomerTier, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c, ok := t.s.tiers[tierKey{tenant, merchantID, customerAccount}]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}
