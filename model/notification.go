package model

import (
	"encoding/json"
	"time"

	"github.com/loyaltyledger/engine/amount"
)

// JobNotification is a durable outbox row drained by the notify dispatcher.
type JobNotification struct {
	NotificationID  string          `db:"notification_id"`
	Tenant          string          `db:"tenant"`
	JobType         JobKind         `db:"job_type"`
	JobID           string          `db:"job_id"`
	ReferenceID     string          `db:"reference_id"`
	Status          JobStatus       `db:"status"`
	Summary         json.RawMessage `db:"summary"`
	Error           string          `db:"error"`
	AvailableAt     time.Time       `db:"available_at"`
	DeliveredAt     *time.Time      `db:"delivered_at"`
	DeliveryAttempts int            `db:"delivery_attempts"`
	CreatedAt       time.Time       `db:"created_at"`
}

// SettlementReport is a periodic aggregate of net merchant-liability points.
type SettlementReport struct {
	Tenant          string     `db:"tenant"`
	MerchantAccount string     `db:"merchant_account"`
	PeriodStart     time.Time  `db:"period_start"`
	PeriodEnd       time.Time  `db:"period_end"`
	NetPoints       amount.Int `db:"net_points"`
	Summary         string     `db:"summary"`
}
