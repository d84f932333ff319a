package model

import (
	"time"

	"github.com/loyaltyledger/engine/amount"
)

// RedeemRequest is an immutable record of a redemption ask, keyed by
// (Tenant, RequestID).
type RedeemRequest struct {
	RequestID      string     `json:"request_id" db:"request_id"`
	Tenant         string     `json:"tenant" db:"tenant"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	AccountID      string     `json:"account_id" db:"account_id"`
	ProgramID      string     `json:"program_id" db:"program_id"`
	Unit           string     `json:"unit" db:"unit"`
	Qty            amount.Int `json:"qty" db:"qty"`
	Memo           string     `json:"memo,omitempty" db:"memo"`
	BurnMerchantID string     `json:"burn_merchant_id,omitempty" db:"burn_merchant_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
