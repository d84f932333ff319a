package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loyaltyledger/engine/jobproc"
	"github.com/loyaltyledger/engine/store/postgres"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "poll receipt_jobs and redeem_jobs and run the plugin chains against due jobs",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().Duration("poll-interval", time.Second, "sleep between empty polls")
	workerCmd.Flags().Duration("reclaim-interval", time.Minute, "how often to run the stale-processing reclaim pass")
	workerCmd.Flags().Duration("reclaim-after", 10*time.Minute, "processing rows older than this are reclaimed back to pending")
	workerCmd.Flags().Int("max-attempts", 5, "attempts before a retryable job failure becomes terminal")
	_ = v.BindPFlag("worker.poll_interval", workerCmd.Flags().Lookup("poll-interval"))
	_ = v.BindPFlag("worker.reclaim_interval", workerCmd.Flags().Lookup("reclaim-interval"))
	_ = v.BindPFlag("worker.reclaim_after", workerCmd.Flags().Lookup("reclaim-after"))
	_ = v.BindPFlag("jobproc.max_attempts", workerCmd.Flags().Lookup("max-attempts"))
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := newLogger("worker")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.New(db)
	processor := newProcessor(store)
	w := jobproc.NewWorker(processor, jobproc.WorkerConfig{
		PollInterval:    v.GetDuration("worker.poll_interval"),
		ReclaimInterval: v.GetDuration("worker.reclaim_interval"),
		ReclaimAfter:    v.GetDuration("worker.reclaim_after"),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("worker starting")
	return w.Run(ctx)
}
