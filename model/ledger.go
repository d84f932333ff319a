package model

import (
	"time"

	"github.com/loyaltyledger/engine/amount"
)

// LedgerEntry is the unposted, in-flight shape a plugin builds; AppendEntries
// assigns EntryID and persists it as a LedgerJournal header plus LedgerLines.
type LedgerEntry struct {
	Tenant    string
	ProgramID string
	ReceiptID string // optional
	Memo      string // optional
	Lines     []LedgerLine
}

// LedgerLine is one posting within an entry. Exactly one of Debit/Credit is
// non-zero.
type LedgerLine struct {
	LineNo    int
	AccountID string
	Debit     amount.Int
	Credit    amount.Int
	Unit      string
}

// LedgerJournal is the persisted, append-only header row.
type LedgerJournal struct {
	EntryID   string    `db:"entry_id"`
	Tenant    string    `db:"tenant"`
	ProgramID string    `db:"program_id"`
	ReceiptID string    `db:"receipt_id"`
	Memo      string    `db:"memo"`
	CreatedAt time.Time `db:"created_at"`
}

// LedgerLineRow is the persisted line row, joined back to its journal.
type LedgerLineRow struct {
	EntryID   string     `db:"entry_id"`
	LineNo    int        `db:"line_no"`
	AccountID string     `db:"account_id"`
	Debit     amount.Int `db:"debit"`
	Credit    amount.Int `db:"credit"`
	Unit      string     `db:"unit"`
}
