// Package redeem implements the redemption side of the plugin contract:
// cross-brand allocation of a redemption across partner merchant accounts.
// The attribution and distribution math are kept in pure functions
// (distribute.go) so they are unit-testable without a database.
package redeem

import (
	"context"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/rules"
)

// AttributionItem is one partner's outstanding attributed balance.
type AttributionItem struct {
	AccountID               string
	Amount                  amount.Int
	SettlementAdjustmentBps *int64
}

// AttributionParams are the inputs to Helpers.GetOutstandingAttribution.
type AttributionParams struct {
	PartnerAccounts []string
	PartnerMap      map[string]string // merchant_id -> partner_account
	ExpiryDays      *int64
	BurnMerchantID  string
}

// Helpers extends the receipt plugin contract with the attribution and
// freeze-state lookups redeem plugins need.
type Helpers interface {
	rules.Helpers
	GetOutstandingAttribution(ctx context.Context, tenant, customerAccount string, p AttributionParams) ([]AttributionItem, error)
	GetFrozenMerchants(ctx context.Context, tenant string, accounts []string) (map[string]bool, error)
}

// Context is the read-only view of a redemption request a plugin evaluates.
type Context struct {
	Tenant          string
	Request         model.RedeemRequest
	CustomerAccount string // "{tenant}::acct::{account_id}" (or merchant_liability alias)
}

// Result is the tagged success|failure(reason, retryable) variant used
// instead of exceptions.
type Result struct {
	Success       bool
	Entries       []model.LedgerEntry
	Summary       map[string]any
	FailureReason string
	Retryable     bool
}

// Failure builds a failed Result.
func Failure(reason string, retryable bool) *Result {
	return &Result{Success: false, FailureReason: reason, Retryable: retryable}
}

// Plugin is a redeem rule plugin.
type Plugin interface {
	Name() string
	ShouldHandle(ctx context.Context, rc Context, h Helpers) bool
	Apply(ctx context.Context, rc Context, h Helpers) (*Result, error)
}
