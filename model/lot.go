package model

import (
	"time"

	"github.com/loyaltyledger/engine/amount"
)

// PointLot is one earn event's inventory, consumed FIFO by redemptions.
type PointLot struct {
	LotID           string     `db:"lot_id"`
	Tenant          string     `db:"tenant"`
	ProgramID       string     `db:"program_id"`
	Unit            string     `db:"unit"`
	CustomerAccount string     `db:"customer_account"`
	MerchantID      string     `db:"merchant_id"`
	EarnEntryID     string     `db:"earn_entry_id"`
	QtyTotal        amount.Int `db:"qty_total"`
	QtyRemaining    amount.Int `db:"qty_remaining"`
	ExpiresAt       *time.Time `db:"expires_at"`
	CreatedAt       time.Time  `db:"created_at"`
}

// ConsumeFilter scopes which lots are eligible for a consumption or
// sum-eligible query. MaxAgeDays and ExpiryDays are both age bounds on
// CreatedAt (not on ExpiresAt, which is always checked against "now"
// separately); they are never both set by the same caller — MaxAgeDays is
// the lot store's own scoping knob, ExpiryDays is attribution's
// cross_brand_allocation.expiry_days / MerchantRedemptionRule override —
// but both mean "lot must have been created within the last N days".
type ConsumeFilter struct {
	MerchantIDs []string // empty/nil = no merchant restriction
	MaxAgeDays  *int64   // lot must have been created within the last N days
	ExpiryDays  *int64   // attribution's age bound; same semantics as MaxAgeDays
}
