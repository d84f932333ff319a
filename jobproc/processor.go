// Package jobproc implements the job-processing state machine: pick the
// oldest due job, run the plugin chain against a frozen snapshot, apply
// the resulting mutations, and complete the job — all inside one database
// transaction. A failed unit of work is rolled back, and its reschedule or
// terminal failure is recorded in a second transaction. The two job tables (receipt_jobs, redeem_jobs)
// share this one Processor; only the context-loading and plugin-dispatch
// steps differ.
package jobproc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/attribution"
	"github.com/loyaltyledger/engine/ledger"
	"github.com/loyaltyledger/engine/lot"
	"github.com/loyaltyledger/engine/metrics"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/programconfig"
	"github.com/loyaltyledger/engine/rules"
	"github.com/loyaltyledger/engine/rules/redeem"
)

// Clock supplies wall time; every plugin and every expiry computation reads
// it through Processor so tests can freeze it.
type Clock func() time.Time

// IDGenerator supplies fresh identifiers (entries, lots, notifications).
type IDGenerator func() string

// Config bounds retry behavior.
type Config struct {
	MaxAttempts int // default 5 if zero
}

// Processor wires the store interfaces, the ledger/lot primitives, the
// attribution algorithm, and the statically composed plugin chains into a
// single unit of work.
type Processor struct {
	db DB

	receiptJobs JobStore
	redeemJobs  JobStore
	receipts    ReceiptStore
	redeems     RedeemStore
	tiers       TierStore
	notify      NotifyStore

	ledger        *ledger.Ledger
	lots          *lot.Lots
	programConfig *programconfig.Cached
	attribution   *attribution.Attribution

	receiptChain []rules.Plugin
	redeemChain  []redeem.Plugin

	now         Clock
	newID       IDGenerator
	maxAttempts int
}

// Deps bundles everything NewProcessor needs, taking its collaborators as
// already-constructed values rather than re-deriving them.
type Deps struct {
	DB            DB
	ReceiptJobs   JobStore
	RedeemJobs    JobStore
	Receipts      ReceiptStore
	Redeems       RedeemStore
	Tiers         TierStore
	Notify        NotifyStore
	Ledger        *ledger.Ledger
	Lots          *lot.Lots
	ProgramConfig *programconfig.Cached
	Attribution   *attribution.Attribution
	ReceiptChain  []rules.Plugin
	RedeemChain   []redeem.Plugin
	Now           Clock
	NewID         IDGenerator
	Config        Config
}

// NewProcessor constructs a Processor from Deps.
func NewProcessor(d Deps) *Processor {
	maxAttempts := d.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Processor{
		db:            d.DB,
		receiptJobs:   d.ReceiptJobs,
		redeemJobs:    d.RedeemJobs,
		receipts:      d.Receipts,
		redeems:       d.Redeems,
		tiers:         d.Tiers,
		notify:        d.Notify,
		ledger:        d.Ledger,
		lots:          d.Lots,
		programConfig: d.ProgramConfig,
		attribution:   d.Attribution,
		receiptChain:  d.ReceiptChain,
		redeemChain:   d.RedeemChain,
		now:           d.Now,
		newID:         d.NewID,
		maxAttempts:   maxAttempts,
	}
}

// unitResult is what running the plugin chain and applying mutations
// produces inside the picked job's transaction, before it is written back
// to the job row in that same transaction.
type unitResult struct {
	summary map[string]any
}

type jobKind int

const (
	kindReceipt jobKind = iota
	kindRedeem
)

func (k jobKind) table() string {
	if k == kindReceipt {
		return "receipt"
	}
	return "redeem"
}

// runUnit dispatches to the receipt or redeem unit of work and returns its
// summary, or an error if any step failed. Every step — loading context,
// running the plugin chain, applying mutations — happens against tx.
func (p *Processor) runUnit(ctx context.Context, tx any, kind jobKind, job model.Job, frozen time.Time) (unitResult, error) {
	switch kind {
	case kindReceipt:
		return p.runReceiptUnit(ctx, tx, job, frozen)
	default:
		return p.runRedeemUnit(ctx, tx, job, frozen)
	}
}

// ProcessNextReceiptJob picks and fully processes at most one due receipt
// job. It reports whether a job was found so callers (jobproc.Worker) know
// whether to poll again immediately or back off.
func (p *Processor) ProcessNextReceiptJob(ctx context.Context) (bool, error) {
	return p.processNext(ctx, p.receiptJobs, kindReceipt)
}

// ProcessNextRedeemJob is the redeem-table analogue.
func (p *Processor) ProcessNextRedeemJob(ctx context.Context) (bool, error) {
	return p.processNext(ctx, p.redeemJobs, kindRedeem)
}

func recordOutcome(kind jobKind, status model.JobStatus) {
	metrics.JobsProcessed.WithLabelValues(kind.table(), string(status)).Inc()
}

// processNext runs one job end to end: pick-and-mark-processing, run the
// unit of work, and apply the terminal/retry outcome — the unit of work's
// transaction aborts on any error and a fresh transaction records the
// reschedule-or-fail decision.
func (p *Processor) processNext(ctx context.Context, jobs JobStore, kind jobKind) (bool, error) {
	frozen := p.now()

	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("jobproc: begin tx: %w", err)
	}

	job, found, err := jobs.PickNextDue(ctx, tx, frozen)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("jobproc: pick next due: %w", err)
	}
	if !found {
		tx.Rollback()
		return false, nil
	}

	result, runErr := p.runUnit(ctx, tx, kind, *job, frozen)
	if runErr != nil {
		tx.Rollback()
		return true, p.applyOutcome(ctx, jobs, kind, *job, frozen, runErr)
	}

	summaryJSON, err := json.Marshal(result.summary)
	if err != nil {
		tx.Rollback()
		return true, p.applyOutcome(ctx, jobs, kind, *job, frozen, fmt.Errorf("jobproc: marshal summary: %w", retryable(err)))
	}
	if err := jobs.Complete(ctx, tx, job.JobID, frozen, summaryJSON); err != nil {
		tx.Rollback()
		return true, p.applyOutcome(ctx, jobs, kind, *job, frozen, fmt.Errorf("jobproc: complete: %w", retryable(err)))
	}
	if err := p.notify.Insert(ctx, tx, model.JobNotification{
		NotificationID: p.newID(),
		Tenant:         job.Tenant,
		JobType:        job.Kind,
		JobID:          job.JobID,
		ReferenceID:    job.ReferenceID,
		Status:         model.JobCompleted,
		Summary:        summaryJSON,
		AvailableAt:    frozen,
		CreatedAt:      frozen,
	}); err != nil {
		tx.Rollback()
		return true, p.applyOutcome(ctx, jobs, kind, *job, frozen, fmt.Errorf("jobproc: insert notification: %w", retryable(err)))
	}
	if err := tx.Commit(); err != nil {
		return true, fmt.Errorf("jobproc: commit: %w", err)
	}
	recordOutcome(kind, model.JobCompleted)
	return true, nil
}

// applyOutcome runs in a fresh transaction and turns a failed unit of work
// into either a backoff reschedule or a terminal failure. A terminal failure
// also appends a failed notification, so the outbox reflects it even though
// the unit-of-work transaction was rolled back; a reschedule appends none.
func (p *Processor) applyOutcome(ctx context.Context, jobs JobStore, kind jobKind, job model.Job, frozen time.Time, runErr error) error {
	// job.Attempts already reflects PickNextDue's increment (it happened in
	// the now-aborted transaction but the in-memory value survives).
	terminal := !isRetryable(runErr) || job.Attempts >= p.maxAttempts

	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("jobproc: begin outcome tx: %w", err)
	}
	defer tx.Rollback()

	lastErr := runErr.Error()
	var status model.JobStatus
	if terminal {
		status = model.JobFailed
		if err := jobs.Fail(ctx, tx, job.JobID, frozen, lastErr); err != nil {
			return fmt.Errorf("jobproc: fail job: %w", err)
		}
	} else {
		status = model.JobPending
		delay := backoff(job.Attempts)
		if err := jobs.Reschedule(ctx, tx, job.JobID, frozen.Add(delay), lastErr); err != nil {
			return fmt.Errorf("jobproc: reschedule job: %w", err)
		}
		metrics.JobsRescheduled.WithLabelValues(kind.table()).Inc()
	}

	if terminal {
		if err := p.notify.Insert(ctx, tx, model.JobNotification{
			NotificationID: p.newID(),
			Tenant:         job.Tenant,
			JobType:        job.Kind,
			JobID:          job.JobID,
			ReferenceID:    job.ReferenceID,
			Status:         status,
			Error:          truncate(lastErr, 1024),
			AvailableAt:    frozen,
			CreatedAt:      frozen,
		}); err != nil {
			return fmt.Errorf("jobproc: insert failure notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("jobproc: commit outcome: %w", err)
	}
	if terminal {
		recordOutcome(kind, model.JobFailed)
	}
	return nil
}

// backoff computes the retry delay: min(60_000ms, attempts*5_000ms).
func backoff(attempts int) time.Duration {
	d := time.Duration(attempts) * 5 * time.Second
	if max := 60 * time.Second; d > max {
		d = max
	}
	return d
}

// truncate bounds err messages to n bytes before they're persisted.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
