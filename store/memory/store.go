// Package memory is an in-process implementation of every store interface
// the engine depends on (ledger.Store, lot.Store, programconfig.Store,
// jobproc's JobStore/ReceiptStore/RedeemStore/NotifyStore/TierStore,
// attribution's RuleStore/MerchantStatusStore): plain maps behind a mutex
// instead of a real database. It exists for unit tests only; the relational
// schema in store/postgres is the persisted-state ABI, not this package.
package memory

import (
	"context"
	"sync"

	"github.com/loyaltyledger/engine/jobproc"
	"github.com/loyaltyledger/engine/model"
)

// Store holds every table the engine reads or writes, guarded by one mutex.
// Single-writer test builds never need row-level locking — the locking
// clause that store/postgres enforces with FOR UPDATE SKIP LOCKED is
// simply omitted here — so one coarse lock per operation is sufficient
// and keeps this package small.
type Store struct {
	mu sync.Mutex

	journals map[string]model.LedgerJournal
	lines    map[string][]model.LedgerLine // entryID -> lines

	lots []*model.PointLot

	programConfigs map[programKey][]byte // raw JSON

	receiptJobs map[string]*model.Job
	redeemJobs  map[string]*model.Job
	receipts    map[string]*model.Receipt
	redeems     map[string]*model.RedeemRequest

	tiers map[tierKey]*model.CustomerTier

	rules          []model.MerchantRedemptionRule
	merchantStatus map[string]bool // "tenant/merchant_account" -> frozen

	notifications []*model.JobNotification
	settlements   map[settlementKey]*model.SettlementReport

	seq int
}

type programKey struct{ tenant, programID string }
type tierKey struct{ tenant, merchantID, customerAccount string }
type settlementKey struct {
	tenant, account string
	start, end      int64 // unix nanos
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		journals:       map[string]model.LedgerJournal{},
		lines:          map[string][]model.LedgerLine{},
		programConfigs: map[programKey][]byte{},
		receiptJobs:    map[string]*model.Job{},
		redeemJobs:     map[string]*model.Job{},
		receipts:       map[string]*model.Receipt{},
		redeems:        map[string]*model.RedeemRequest{},
		tiers:          map[tierKey]*model.CustomerTier{},
		merchantStatus: map[string]bool{},
		settlements:    map[settlementKey]*model.SettlementReport{},
	}
}

// Tx is a no-op transaction handle: every Store method mutates state
// directly, and Rollback simply discards a staged-but-uncommitted intent
// that never existed in the first place. This is sufficient for
// single-writer tests, which never interleave two open transactions.
type Tx struct {
	committed bool
}

func (t *Tx) Commit() error   { t.committed = true; return nil }
func (t *Tx) Rollback() error { return nil }

// BeginTx implements jobproc.DB.
func (s *Store) BeginTx(_ context.Context) (jobproc.Tx, error) {
	return &Tx{}, nil
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return prefix + itoa(s.seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
