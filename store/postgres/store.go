// Package postgres is the production store backing every interface the
// engine depends on: a *sql.DB wrapped with plain `$1`-placeholder SQL and
// explicit Scan calls, no ORM, lib/pq as the driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/loyaltyledger/engine/jobproc"
)

// Store wraps the connection pool every sub-store embeds.
type Store struct {
	db *sql.DB
}

// New constructs a Store over an already-opened *sql.DB (see cmd/loyaltyctl
// for the lib/pq "postgres" driver registration and DSN wiring).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Tx wraps *sql.Tx so it satisfies jobproc.Tx without every store method
// needing to import database/sql just to type-assert it back.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// BeginTx implements jobproc.DB. The return type is the jobproc.Tx
// interface, not *Tx, because Go requires the exact declared return type
// to satisfy an interface method whose signature names another interface.
func (s *Store) BeginTx(ctx context.Context) (jobproc.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx; every store method
// accepts the `tx any` parameter every package-level interface declares and
// resolves it to one of these two before issuing SQL, since a nil tx means
// "read outside any transaction" (the public balances/config read paths).
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(tx any) querier {
	if t, ok := tx.(*Tx); ok {
		return t.tx
	}
	return s.db
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// failure (SQLSTATE 23505), the signal ingress uses to fall back to its
// idempotency-lookup path on a race between two concurrent submissions with
// the same (tenant, idempotency_key).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if ok := asPQError(err, &pqErr); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func asPQError(err error, target **pq.Error) bool {
	for err != nil {
		if e, ok := err.(*pq.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
