package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loyaltyledger/engine/notify"
	"github.com/loyaltyledger/engine/store/postgres"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "drain the job_notifications outbox to a webhook",
	RunE:  runNotifier,
}

func init() {
	notifierCmd.Flags().String("webhook-url", "", "webhook URL every outbox row is POSTed to")
	notifierCmd.Flags().String("webhook-secret", "", "optional HMAC secret; enables x-signature-sha256")
	notifierCmd.Flags().Duration("poll-interval", time.Second, "sleep between empty polls")
	notifierCmd.Flags().Duration("timeout", 10*time.Second, "per-delivery HTTP timeout")
	_ = v.BindPFlag("notify.webhook_url", notifierCmd.Flags().Lookup("webhook-url"))
	_ = v.BindPFlag("notify.webhook_secret", notifierCmd.Flags().Lookup("webhook-secret"))
	_ = v.BindPFlag("notify.poll_interval", notifierCmd.Flags().Lookup("poll-interval"))
	_ = v.BindPFlag("notify.timeout", notifierCmd.Flags().Lookup("timeout"))
}

func runNotifier(cmd *cobra.Command, args []string) error {
	logger := newLogger("notifier")

	webhookURL := v.GetString("notify.webhook_url")
	if webhookURL == "" {
		return fmt.Errorf("loyaltyctl: notifier requires --webhook-url")
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.New(db)
	dispatcher := notify.New(store, store, wallClock, notify.Config{
		WebhookURL:   webhookURL,
		Secret:       v.GetString("notify.webhook_secret"),
		PollInterval: v.GetDuration("notify.poll_interval"),
		Timeout:      v.GetDuration("notify.timeout"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pollInterval := v.GetDuration("notify.poll_interval")
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	logger.Info("notifier starting", "webhook", webhookURL)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		found, err := dispatcher.DispatchNext(ctx)
		if err != nil {
			logger.Error("dispatch failed", "err", err)
		}
		if !found {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
		}
	}
}
