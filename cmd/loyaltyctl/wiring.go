package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"

	"github.com/loyaltyledger/engine/attribution"
	"github.com/loyaltyledger/engine/idgen"
	"github.com/loyaltyledger/engine/jobproc"
	"github.com/loyaltyledger/engine/ledger"
	"github.com/loyaltyledger/engine/lot"
	"github.com/loyaltyledger/engine/programconfig"
	"github.com/loyaltyledger/engine/rules/receipt"
	"github.com/loyaltyledger/engine/rules/redeem"
	"github.com/loyaltyledger/engine/store/postgres"
)

func newLogger(prefix string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
	})
	switch v.GetString("log.level") {
	case "debug":
		l.SetLevel(log.DebugLevel)
	case "warn":
		l.SetLevel(log.WarnLevel)
	case "error":
		l.SetLevel(log.ErrorLevel)
	case "fatal":
		l.SetLevel(log.FatalLevel)
	default:
		l.SetLevel(log.InfoLevel)
	}
	return l
}

func openDB() (*sql.DB, error) {
	dsn := v.GetString("db.dsn")
	if dsn == "" {
		return nil, fmt.Errorf("loyaltyctl: db.dsn is required (--db-dsn, config db.dsn, or LOYALTYCTL_DB_DSN)")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("loyaltyctl: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loyaltyctl: ping db: %w", err)
	}
	return db, nil
}

func wallClock() time.Time { return time.Now().UTC() }

// newProcessor builds a jobproc.Processor wired against store, with the
// statically composed receipt and redeem chains.
func newProcessor(store *postgres.Store) *jobproc.Processor {
	cacheSize := v.GetInt("program_config.cache_size")
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	programConfig := programconfig.NewCached(store.ProgramConfigStoreView(), cacheSize)

	lots := lot.New(store, wallClock, idgen.New)
	attr := attribution.New(store, store, store, wallClock)
	led := ledger.New(store, idgen.New, wallClock)

	maxAttempts := v.GetInt("jobproc.max_attempts")

	return jobproc.NewProcessor(jobproc.Deps{
		DB:            store,
		ReceiptJobs:   store.ReceiptJobs(),
		RedeemJobs:    store.RedeemJobs(),
		Receipts:      store,
		Redeems:       store.RedeemStoreView(),
		Tiers:         store.TierStoreView(),
		Notify:        store,
		Ledger:        led,
		Lots:          lots,
		ProgramConfig: programConfig,
		Attribution:   attr,
		ReceiptChain:  receipt.Chain(),
		RedeemChain:   redeem.Chain(),
		Now:           wallClock,
		NewID:         idgen.New,
		Config:        jobproc.Config{MaxAttempts: maxAttempts},
	})
}
