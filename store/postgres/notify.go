package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/model"
)

// PickNextDue implements notify.Store: the oldest undelivered outbox row
// whose available_at has passed, locked within the caller's transaction so
// two dispatcher instances never race on the same notification. The lock
// is held until the same transaction records the delivery outcome.
func (s *Store) PickNextDue(ctx context.Context, tx any, now time.Time) (*model.JobNotification, bool, error) {
	row := s.q(tx).QueryRowContext(ctx, `
		SELECT notification_id, tenant, job_type, job_id, reference_id, status, summary, error, available_at, delivered_at, delivery_attempts, created_at
		FROM job_notifications
		WHERE delivered_at IS NULL AND available_at <= $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`, now)

	var n model.JobNotification
	err := row.Scan(&n.NotificationID, &n.Tenant, &n.JobType, &n.JobID, &n.ReferenceID, &n.Status, &n.Summary, &n.Error, &n.AvailableAt, &n.DeliveredAt, &n.DeliveryAttempts, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: pick next notification: %w", err)
	}
	return &n, true, nil
}

// MarkDelivered records a successful delivery: delivered_at transitions
// NULL -> now and the attempt that succeeded is counted.
func (s *Store) MarkDelivered(ctx context.Context, tx any, notificationID string, now time.Time) error {
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE job_notifications SET delivered_at = $1, delivery_attempts = delivery_attempts + 1
		WHERE notification_id = $2`, now, notificationID)
	if err != nil {
		return fmt.Errorf("postgres: mark delivered %s: %w", notificationID, err)
	}
	return nil
}

// MarkDeliveryFailed reschedules a failed delivery attempt and records the
// truncated error.
func (s *Store) MarkDeliveryFailed(ctx context.Context, tx any, notificationID string, availableAt time.Time, lastErr string) error {
	if len(lastErr) > 1024 {
		lastErr = lastErr[:1024]
	}
	_, err := s.q(tx).ExecContext(ctx, `
		UPDATE job_notifications SET available_at = $1, delivery_attempts = delivery_attempts + 1, error = $2
		WHERE notification_id = $3`, availableAt, lastErr, notificationID)
	if err != nil {
		return fmt.Errorf("postgres: mark delivery failed %s: %w", notificationID, err)
	}
	return nil
}
