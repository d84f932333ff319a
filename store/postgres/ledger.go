package postgres

import (
	"context"
	"fmt"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// InsertJournal implements ledger.Store.
func (s *Store) InsertJournal(ctx context.Context, tx any, j model.LedgerJournal) error {
	_, err := s.q(tx).ExecContext(ctx, `
		INSERT INTO ledger_journals (entry_id, tenant, program_id, receipt_id, memo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		j.EntryID, j.Tenant, j.ProgramID, j.ReceiptID, j.Memo, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert journal: %w", err)
	}
	return nil
}

// InsertLines implements ledger.Store.
func (s *Store) InsertLines(ctx context.Context, tx any, entryID string, lines []model.LedgerLine) error {
	q := s.q(tx)
	for _, l := range lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO ledger_lines (entry_id, line_no, account_id, debit, credit, unit)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			entryID, l.LineNo, l.AccountID, l.Debit, l.Credit, l.Unit)
		if err != nil {
			return fmt.Errorf("postgres: insert line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

// SumLines implements ledger.Store. programID and unit of "" are treated as
// unfiltered, the same relaxation store/memory applies.
func (s *Store) SumLines(ctx context.Context, tx any, tenant, accountID, programID, unit string) (credits, debits amount.Int, err error) {
	row := s.q(tx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(l.credit), 0), COALESCE(SUM(l.debit), 0)
		FROM ledger_lines l
		JOIN ledger_journals j ON j.entry_id = l.entry_id
		WHERE j.tenant = $1
		  AND l.account_id = $2
		  AND ($3 = '' OR j.program_id = $3)
		  AND ($4 = '' OR l.unit = $4)`,
		tenant, accountID, programID, unit)
	credits, debits = amount.Zero(), amount.Zero()
	if scanErr := row.Scan(&credits, &debits); scanErr != nil {
		return amount.Int{}, amount.Int{}, fmt.Errorf("postgres: sum lines: %w", scanErr)
	}
	return credits, debits, nil
}
