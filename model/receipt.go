// Package model holds the entity types persisted by the ledger engine.
// Every type here is a plain data record; behavior lives in the owning
// package (ledger, lot, rules, jobproc, ...), not on these structs.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/shopspring/decimal"
)

// Receipt is an immutable record of a purchase, keyed by (Tenant, ReceiptID).
type Receipt struct {
	ReceiptID       string          `json:"receipt_id" db:"receipt_id"`
	Tenant          string          `json:"tenant" db:"tenant"`
	IdempotencyKey  string          `json:"idempotency_key" db:"idempotency_key"`
	Fingerprint     string          `json:"fingerprint" db:"fingerprint"`
	MerchantID      string          `json:"merchant_id" db:"merchant_id"`
	StoreID         string          `json:"store_id,omitempty" db:"store_id"`
	AccountRef      string          `json:"account_ref" db:"account_ref"`
	ProgramID       string          `json:"program_id" db:"program_id"`
	GrandTotalCents amount.Int      `json:"grand_total_cents" db:"grand_total_cents"`
	ProcessorTxnID  string          `json:"processor_txn_id,omitempty" db:"processor_txn_id"`
	IssuedAt        time.Time       `json:"issued_at" db:"issued_at"`
	Payload         json.RawMessage `json:"payload" db:"payload"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// ReceiptItem is a single line of the original receipt payload. It is not a
// separate table: it lives inside Receipt.Payload, but plugins decode it out
// of the raw JSON via this shape.
type ReceiptItem struct {
	SKU      string     `json:"sku"`
	Qty      int64      `json:"qty"`
	UnitCost amount.Int `json:"unit_cost_cents,omitempty"`
}

// ReceiptPayload is the decoded shape of Receipt.Payload that plugins read.
type ReceiptPayload struct {
	Items []ReceiptItem `json:"items"`
}

// ComputeFingerprint derives a Receipt's duplicate-detection fingerprint
//: a stable hash of its natural-key attributes, used alongside
// idempotency_key to reject replays that omit one but repeat the other.
func ComputeFingerprint(tenant, idempotencyKey, merchantID, storeID, accountRef string, grandTotalCents amount.Int, processorTxnID string, issuedAt time.Time) string {
	total := decimal.NewFromBigInt(grandTotalCents.Big(), -2).StringFixed(2)
	h := sha256.New()
	for _, field := range []string{
		tenant, idempotencyKey, merchantID, storeID, accountRef,
		total, processorTxnID, issuedAt.UTC().Format(time.RFC3339),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
