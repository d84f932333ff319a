// Package ledger implements the balanced double-entry primitives every
// mutation in the engine is built from: validate an entry, append a batch of
// entries inside an already-open transaction, and query an account's
// balance. The entry shape is an arbitrary-unit, multi-line model; the
// balance invariant holds per unit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// ErrUnbalancedEntry is returned when an entry's debits and credits do not
// sum to the same value within some unit.
var ErrUnbalancedEntry = errors.New("ledger: unbalanced entry")

// ErrEmptyEntry is returned when an entry carries no lines.
var ErrEmptyEntry = errors.New("ledger: empty entry")

// ValidateEntry checks the balance invariant per unit. It never mutates the
// entry and never touches the database.
func ValidateEntry(entry model.LedgerEntry) error {
	if len(entry.Lines) == 0 {
		return ErrEmptyEntry
	}
	totals := map[string]amount.Int{}
	for _, line := range entry.Lines {
		t := totals[line.Unit]
		totals[line.Unit] = t.Add(line.Credit).Sub(line.Debit)
	}
	for unit, net := range totals {
		if !net.IsZero() {
			return fmt.Errorf("%w: unit %q does not balance (net %s)", ErrUnbalancedEntry, unit, net.String())
		}
	}
	return nil
}

// Store is the persistence surface the ledger package depends on. It is
// implemented by store/postgres (against a live database) and store/memory
// (for unit tests).
type Store interface {
	// InsertJournal writes one journal header row.
	InsertJournal(ctx context.Context, tx any, j model.LedgerJournal) error
	// InsertLines writes the line rows for one journal, in order.
	InsertLines(ctx context.Context, tx any, entryID string, lines []model.LedgerLine) error
	// SumLines returns Σcredits and Σdebits for the matching scope, read
	// within tx (nil means read outside any transaction, e.g. the public
	// balances API).
	SumLines(ctx context.Context, tx any, tenant, accountID, programID, unit string) (credits, debits amount.Int, err error)
}

// IDGenerator supplies fresh entry identifiers; idgen.New satisfies this.
type IDGenerator func() string

// Clock supplies wall time for journal timestamps; tests inject a frozen
// clock the same way jobproc.Processor does.
type Clock func() time.Time

// Ledger binds a Store, an IDGenerator, and a Clock together. It is
// intentionally small: the three spec-mandated operations and nothing else.
type Ledger struct {
	store Store
	newID IDGenerator
	now   Clock
}

// New constructs a Ledger.
func New(store Store, newID IDGenerator, now Clock) *Ledger {
	return &Ledger{store: store, newID: newID, now: now}
}

// AppendEntries validates and persists each entry in order, inside the
// caller's already-open transaction tx. It returns the assigned entry IDs in
// input order. Idempotency is the caller's concern; this layer never
// deduplicates.
func (l *Ledger) AppendEntries(ctx context.Context, tx any, tenant string, entries []model.LedgerEntry) ([]string, error) {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ValidateEntry(entry); err != nil {
			return nil, err
		}
		entryID := l.newID()
		journal := model.LedgerJournal{
			EntryID:   entryID,
			Tenant:    tenant,
			ProgramID: entry.ProgramID,
			ReceiptID: entry.ReceiptID,
			Memo:      entry.Memo,
			CreatedAt: l.now(),
		}
		if err := l.store.InsertJournal(ctx, tx, journal); err != nil {
			return nil, fmt.Errorf("ledger: insert journal: %w", err)
		}
		lines := make([]model.LedgerLine, len(entry.Lines))
		for i, line := range entry.Lines {
			line.LineNo = i + 1
			lines[i] = line
		}
		if err := l.store.InsertLines(ctx, tx, entryID, lines); err != nil {
			return nil, fmt.Errorf("ledger: insert lines: %w", err)
		}
		ids = append(ids, entryID)
	}
	return ids, nil
}

// Balance returns Σcredits − Σdebits over all matching lines. programID and
// unit are optional filters ("" means unfiltered). Not guaranteed monotonic
// over time: redemptions and refunds can move it in either direction. Pass
// tx to read within a job's own transaction; pass nil for the public
// balances API, which reads committed state.
func (l *Ledger) Balance(ctx context.Context, tx any, tenant, accountID, programID, unit string) (amount.Int, error) {
	credits, debits, err := l.store.SumLines(ctx, tx, tenant, accountID, programID, unit)
	if err != nil {
		return amount.Int{}, fmt.Errorf("ledger: balance: %w", err)
	}
	return credits.Sub(debits), nil
}
