package memory

import (
	"context"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// InsertJournal implements ledger.Store.
func (s *Store) InsertJournal(_ context.Context, _ any, j model.LedgerJournal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journals[j.EntryID] = j
	return nil
}

// InsertLines implements ledger.Store.
func (s *Store) InsertLines(_ context.Context, _ any, entryID string, lines []model.LedgerLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[entryID] = append([]model.LedgerLine(nil), lines...)
	return nil
}

// SumLines implements ledger.Store: Σcredits and Σdebits over every line
// whose journal matches tenant and, when non-empty, programID, joined on
// unit (also filtered when non-empty).
func (s *Store) SumLines(_ context.Context, _ any, tenant, accountID, programID, unit string) (credits, debits amount.Int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credits, debits = amount.Zero(), amount.Zero()
	for entryID, lines := range s.lines {
		j, ok := s.journals[entryID]
		if !ok || j.Tenant != tenant {
			continue
		}
		if programID != "" && j.ProgramID != programID {
			continue
		}
		for _, l := range lines {
			if l.AccountID != accountID {
				continue
			}
			if unit != "" && l.Unit != unit {
				continue
			}
			credits = credits.Add(l.Credit)
			debits = debits.Add(l.Debit)
		}
	}
	return credits, debits, nil
}
