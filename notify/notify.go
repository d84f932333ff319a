// Package notify implements the durable outbox dispatcher: pick the
// oldest due row, POST it to a configured webhook, and record delivery or
// failure. At-least-once; there is no delivery attempt cap, stuck rows are
// drained out of band.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loyaltyledger/engine/jobproc"
	"github.com/loyaltyledger/engine/metrics"
	"github.com/loyaltyledger/engine/model"
)

// Store is the persistence surface this package depends on. Every method
// takes the dispatch attempt's transaction, so the row lock PickNextDue
// acquires is still held when the delivery outcome is recorded.
type Store interface {
	// PickNextDue returns the oldest row with delivered_at IS NULL and
	// available_at <= now, locked within tx so a second dispatcher
	// instance skips it, or (nil, false, nil) if none is due.
	PickNextDue(ctx context.Context, tx any, now time.Time) (*model.JobNotification, bool, error)
	MarkDelivered(ctx context.Context, tx any, notificationID string, now time.Time) error
	MarkDeliveryFailed(ctx context.Context, tx any, notificationID string, availableAt time.Time, lastErr string) error
}

// Clock supplies wall time.
type Clock func() time.Time

// Config tunes dispatch behavior.
type Config struct {
	WebhookURL   string
	Secret       string // optional; enables x-signature-sha256
	PollInterval time.Duration
	Timeout      time.Duration // per-request HTTP timeout, default 10s
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// wireBody is the JSON shape POSTed to the webhook.
type wireBody struct {
	TenantID    string          `json:"tenantId"`
	JobType     model.JobKind   `json:"jobType"`
	JobID       string          `json:"jobId"`
	ReferenceID string          `json:"referenceId"`
	Status      model.JobStatus `json:"status"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Dispatcher drains the outbox, one row per DispatchNext call.
type Dispatcher struct {
	db     jobproc.DB
	store  Store
	now    Clock
	cfg    Config
	client *http.Client
}

// New constructs a Dispatcher.
func New(db jobproc.DB, store Store, now Clock, cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		db:     db,
		store:  store,
		now:    now,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// DispatchNext attempts delivery of the single oldest due notification. It
// reports whether a row was found, so a poll loop knows whether to sleep.
// Pick, deliver, and mark all happen under one transaction: the row lock
// taken by PickNextDue spans the HTTP call, so no second dispatcher can
// pick the same row and deliver it twice.
func (d *Dispatcher) DispatchNext(ctx context.Context) (bool, error) {
	tx, err := d.db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("notify: begin tx: %w", err)
	}

	n, found, err := d.store.PickNextDue(ctx, tx, d.now())
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("notify: pick next due: %w", err)
	}
	if !found {
		tx.Rollback()
		return false, nil
	}

	body, marshalErr := json.Marshal(wireBody{
		TenantID:    n.Tenant,
		JobType:     n.JobType,
		JobID:       n.JobID,
		ReferenceID: n.ReferenceID,
		Status:      n.Status,
		Summary:     n.Summary,
		Error:       n.Error,
	})

	var outcome error
	if marshalErr != nil {
		outcome = d.fail(ctx, tx, n, fmt.Sprintf("marshal body: %v", marshalErr))
	} else if deliverErr := d.deliver(ctx, n, body); deliverErr != nil {
		outcome = d.fail(ctx, tx, n, deliverErr.Error())
		metrics.NotificationDeliveryAttempts.WithLabelValues("failure").Inc()
	} else {
		outcome = d.store.MarkDelivered(ctx, tx, n.NotificationID, d.now())
		metrics.NotificationDeliveryAttempts.WithLabelValues("success").Inc()
	}
	if outcome != nil {
		tx.Rollback()
		return true, fmt.Errorf("notify: record outcome: %w", outcome)
	}

	if err := tx.Commit(); err != nil {
		return true, fmt.Errorf("notify: commit: %w", err)
	}
	return true, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.JobNotification, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-tenant-id", n.Tenant)
	req.Header.Set("x-job-type", string(n.JobType))
	req.Header.Set("x-job-id", n.JobID)
	if d.cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(d.cfg.Secret))
		mac.Write(body)
		req.Header.Set("x-signature-sha256", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// fail reschedules the row: available_at = now + 5 * poll_interval, with
// the error truncated to 1024 chars.
func (d *Dispatcher) fail(ctx context.Context, tx any, n *model.JobNotification, lastErr string) error {
	availableAt := d.now().Add(5 * d.cfg.PollInterval)
	return d.store.MarkDeliveryFailed(ctx, tx, n.NotificationID, availableAt, lastErr)
}
