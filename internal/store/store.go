// Package store owns the single SQLite connection the whole process
// shares, its migration on open, periodic online backups, and a
// narrow transaction helper every other internal package builds on.
// Built directly on database/sql and mattn/go-sqlite3 so migration
// and backup can reach the driver-level primitives online backup
// needs (see DESIGN.md).
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store wraps the process's single *sql.DB handle. SQLite tolerates
// only one writer at a time; rather than pool connections the way a
// networked database would, Store pins MaxOpenConns to 1 so the
// standard library serializes writers for us instead of surfacing
// SQLITE_BUSY to callers.
type Store struct {
	db     *sql.DB
	path   string
	log    zerolog.Logger
}

// Open opens the SQLite file at path (creating it if absent),
// enforces a single-writer connection pool, runs the migration
// algorithm, and returns a ready Store.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	s := &Store{db: db, path: path, log: log.With().Str("component", "store").Logger()}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return s, nil
}

// DB exposes the underlying handle for packages that issue their own
// prepared queries (ledger, quest, trade, ...).
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path, used by the backup scheduler.
func (s *Store) Path() string { return s.path }

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Tx is the minimal subset of *sql.Tx / *sql.DB that business-logic
// packages need; accepting it lets ledger/quest/trade functions run
// either standalone or nested inside a caller's WithTx scope.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a single SQLite transaction, committing on a
// nil return and rolling back otherwise. Every economic mutation in
// the ledger and the systems built on it (quest claims, trades,
// minigames, shop purchases) runs through WithTx so a failure midway
// can never leave a balance and its transaction-log row disagreeing
// (spec.md §4.2 invariant).
func (s *Store) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error().Err(rbErr).Msg("rollback failed")
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
