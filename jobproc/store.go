package jobproc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// DB opens the transactions every unit of work runs inside: a successful work
// unit, from pick to complete, executes under one transaction; a failed one
// is rolled back and its reschedule or failure is written in a second one.
type DB interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is the transaction handle returned by DB.BeginTx. It is passed down to
// every store method as the `tx any` parameter; concrete implementations
// type-assert it back to their own underlying handle (*sql.Tx for
// store/postgres; store/memory ignores it and mutates its state directly).
type Tx interface {
	Commit() error
	Rollback() error
}

// JobStore is the persistence surface for one job table. The two job
// tables (receipt_jobs, redeem_jobs) are structurally identical, so
// store/postgres implements this interface twice against two table names
// rather than duplicating the Go type.
type JobStore interface {
	// PickNextDue selects the single oldest pending-and-due job, transitions
	// it to processing and increments attempts, all within tx. Returns
	// (nil, false, nil) when no job is due. The returned Job's Attempts
	// reflects the increment (post-update), not the pre-pick value.
	PickNextDue(ctx context.Context, tx any, now time.Time) (*model.Job, bool, error)
	Complete(ctx context.Context, tx any, jobID string, now time.Time, summary json.RawMessage) error
	Fail(ctx context.Context, tx any, jobID string, now time.Time, lastErr string) error
	Reschedule(ctx context.Context, tx any, jobID string, availableAt time.Time, lastErr string) error
	// ReclaimStale reverts processing rows older than olderThan back to
	// pending, returning the count reclaimed.
	ReclaimStale(ctx context.Context, tx any, olderThan time.Time) (int, error)
}

// ReceiptStore loads the immutable receipt payload a receipt job refers to,
// and aggregates rolling spend for RollingSpendTier.
type ReceiptStore interface {
	Get(ctx context.Context, tx any, tenant, receiptID string) (*model.Receipt, bool, error)
	// RollingSpendCents sums grand_total_cents over receipts in
	// [windowStart, windowEnd) for (tenant, merchantID, customerAccountRef).
	RollingSpendCents(ctx context.Context, tx any, tenant, merchantID, customerAccountRef string, windowStart, windowEnd time.Time) (amount.Int, error)
}

// RedeemStore loads the immutable redeem request a redeem job refers to.
type RedeemStore interface {
	Get(ctx context.Context, tx any, tenant, requestID string) (*model.RedeemRequest, bool, error)
}

// NotifyStore appends one row to the durable outbox.
type NotifyStore interface {
	Insert(ctx context.Context, tx any, n model.JobNotification) error
}

// TierStore persists CustomerTier rows.
type TierStore interface {
	Upsert(ctx context.Context, tx any, t model.CustomerTier) error
	Get(ctx context.Context, tx any, tenant, merchantID, customerAccount string) (*model.CustomerTier, error)
}
