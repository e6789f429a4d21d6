// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store persists every entity of §3 to SQLite. It follows the
// teacher's analytics store shape (WAL DSN, idempotent schema, upsert via
// ON CONFLICT) but is laid out per-entity rather than as a single file.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/grimm-is/netmond/internal/errors"
)

// Store is the single persistence handle for the process; all domain
// packages read and write through it.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and applies
// the schema. WAL mode and a busy timeout let the scheduler's concurrent
// jobs write without "database is locked" under ordinary contention.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "store: open")
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer connection avoids SQLITE_BUSY under WAL

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for packages that need a custom aggregate query
// not worth a dedicated method (e.g. WAN/power rollups in internal/alerting).
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. Used by InsertFlowRecords; the per-device poll writes do
// not go through it and each commit on its own.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "store: begin tx")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "store: commit")
	}
	return nil
}

func wrapExec(err error, op string) error {
	if err == nil {
		return nil
	}
	kind := errors.KindUnavailable
	if err == sql.ErrNoRows {
		kind = errors.KindNotFound
	}
	return errors.Wrap(err, kind, fmt.Sprintf("store: %s", op))
}
