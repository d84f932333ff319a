package jobproc

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// WorkerConfig tunes the polling loop: each worker iteration picks at most
// one job, and suspension points are database calls, so the loop is a
// plain poll-sleep-poll with no in-process queue.
type WorkerConfig struct {
	PollInterval    time.Duration // how long to sleep after an empty poll
	ReclaimInterval time.Duration // how often to run the stale-processing reclaim pass
	ReclaimAfter    time.Duration // processing rows older than this are reclaimed
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = time.Minute
	}
	if c.ReclaimAfter <= 0 {
		c.ReclaimAfter = 10 * time.Minute
	}
	return c
}

// Worker drives the Processor's two job tables concurrently, with parallel
// workers cooperating through the relational store rather than an
// in-process queue. It also runs a reclaim pass that reverts long-stuck
// processing rows back to pending.
type Worker struct {
	p      *Processor
	cfg    WorkerConfig
	logger *log.Logger
}

// NewWorker constructs a Worker over an already-built Processor.
func NewWorker(p *Processor, cfg WorkerConfig, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{p: p, cfg: cfg.withDefaults(), logger: logger.WithPrefix("jobproc")}
}

// Run blocks until ctx is canceled, driving the receipt table, the redeem
// table, and the reclaim pass as independent loops joined by an errgroup.
// Any in-flight transaction aborts cleanly on cancellation because every
// store call takes ctx.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.pollLoop(ctx, "receipt", w.p.ProcessNextReceiptJob) })
	g.Go(func() error { return w.pollLoop(ctx, "redeem", w.p.ProcessNextRedeemJob) })
	g.Go(func() error { return w.reclaimLoop(ctx) })
	return g.Wait()
}

// pollLoop repeatedly calls process; when it finds no due job it sleeps for
// PollInterval before trying again, so idle workers do not hot-loop against
// the store.
func (w *Worker) pollLoop(ctx context.Context, name string, process func(context.Context) (bool, error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		found, err := process(ctx)
		if err != nil {
			w.logger.Error("job processing failed", "table", name, "err", err)
		}
		if !found {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.PollInterval):
			}
		}
	}
}

// reclaimLoop periodically reverts processing rows older than ReclaimAfter
// back to pending, for workers that crashed mid-transaction and left a row
// stuck in processing with no worker left to finish it.
func (w *Worker) reclaimLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.ReclaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.reclaimOnce(ctx)
		}
	}
}

func (w *Worker) reclaimOnce(ctx context.Context) {
	threshold := w.p.now().Add(-w.cfg.ReclaimAfter)
	for name, jobs := range map[string]JobStore{"receipt": w.p.receiptJobs, "redeem": w.p.redeemJobs} {
		tx, err := w.p.db.BeginTx(ctx)
		if err != nil {
			w.logger.Error("reclaim: begin tx failed", "table", name, "err", err)
			continue
		}
		n, err := jobs.ReclaimStale(ctx, tx, threshold)
		if err != nil {
			tx.Rollback()
			w.logger.Error("reclaim: failed", "table", name, "err", err)
			continue
		}
		if err := tx.Commit(); err != nil {
			w.logger.Error("reclaim: commit failed", "table", name, "err", err)
			continue
		}
		if n > 0 {
			w.logger.Warn("reclaimed stale processing jobs", "table", name, "count", n)
		}
	}
}
