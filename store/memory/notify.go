package memory

import (
	"context"
	"time"

	"github.com/loyaltyledger/engine/model"
)

// PickNextDue implements notify.Store: the oldest undelivered outbox row
// whose AvailableAt has passed. The tx parameter is accepted for interface
// parity; single-writer tests never hold two dispatch transactions at once.
func (s *Store) PickNextDue(_ context.Context, _ any, now time.Time) (*model.JobNotification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var picked *model.JobNotification
	for _, n := range s.notifications {
		if n.DeliveredAt != nil || n.AvailableAt.After(now) {
			continue
		}
		if picked == nil || n.CreatedAt.Before(picked.CreatedAt) {
			picked = n
		}
	}
	if picked == nil {
		return nil, false, nil
	}
	cp := *picked
	return &cp, true, nil
}

// MarkDelivered records a successful delivery, counting the attempt that
// succeeded.
func (s *Store) MarkDelivered(_ context.Context, _ any, notificationID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.NotificationID == notificationID {
			n.DeliveredAt = &now
			n.DeliveryAttempts++
			return nil
		}
	}
	return nil
}

// MarkDeliveryFailed reschedules a failed delivery attempt and records the
// truncated error.
func (s *Store) MarkDeliveryFailed(_ context.Context, _ any, notificationID string, availableAt time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.NotificationID == notificationID {
			n.AvailableAt = availableAt
			n.DeliveryAttempts++
			if len(lastErr) > 1024 {
				lastErr = lastErr[:1024]
			}
			n.Error = lastErr
			return nil
		}
	}
	return nil
}
