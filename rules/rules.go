// Package rules declares the shared plugin contract: a Mutation is a
// plugin's declarative output, and the Helpers interfaces are the only way
// plugin code touches the database or the wall clock — wall clock and ID
// generation are always supplied via helpers, never read directly.
// Concrete plugins live in rules/receipt and rules/redeem;
// this package only has the vocabulary they share.
package rules

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// Mutation is a plugin's declarative output: zero or more ledger entries
// plus an optional summary. A nil *Mutation means the plugin chose to skip.
type Mutation struct {
	Entries []model.LedgerEntry
	Summary map[string]any
}

// RollingSpendParams are the inputs to Helpers.GetRollingSpendCents.
type RollingSpendParams struct {
	Tenant          string
	MerchantID      string
	CustomerAccount string
	WindowStart     time.Time
	WindowEnd       time.Time
}

// UpsertTierParams are the inputs to Helpers.UpsertCustomerTier.
type UpsertTierParams struct {
	Tenant            string
	MerchantID        string
	CustomerAccount   string
	TierName          string
	WindowDays        int64
	WindowStart       time.Time
	WindowEnd         time.Time
	RollingSpendCents int64
}

// Helpers is the contract surfaced to every receipt plugin.
// Redeem plugins get this plus redeem.Helpers (attribution + freeze state).
type Helpers interface {
	Now() time.Time
	GenerateID() string
	GetProgramConfig(ctx context.Context, tenant, programID string) (json.RawMessage, bool, error)
	GetAccountBalance(ctx context.Context, accountID, programID, unit string) (amount.Int, error)
	GetRollingSpendCents(ctx context.Context, p RollingSpendParams) (amount.Int, error)
	UpsertCustomerTier(ctx context.Context, p UpsertTierParams) error
	GetCustomerTier(ctx context.Context, tenant, merchantID, customerAccount string) (*model.CustomerTier, error)
}

// ReceiptContext is the read-only view of a receipt a plugin evaluates
// against. Fields are pre-resolved by the job processor (account id
// formatting, payload decoding) so plugins never touch raw storage shapes.
type ReceiptContext struct {
	Tenant                   string
	Receipt                  model.Receipt
	Items                    []model.ReceiptItem
	CustomerAccount          string // "{tenant}::acct::{account_ref}"
	MerchantLiabilityAccount string // "{tenant}::merchant_liability"
}

// Plugin is a receipt rule: shouldHandle/apply over a frozen snapshot.
// Implementations must be deterministic given an identical DB snapshot and
// frozen clock.
type Plugin interface {
	Name() string
	ShouldHandle(ctx context.Context, rc ReceiptContext, h Helpers) bool
	Apply(ctx context.Context, rc ReceiptContext, h Helpers) (*Mutation, error)
}
