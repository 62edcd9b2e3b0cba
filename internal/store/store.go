// Package store is the Aggregator's Persistent Store (spec §3): an
// embedded, WAL-mode SQLite database reached through database/sql and the
// cgo-free modernc.org/sqlite driver, owned exclusively by this process for
// its lifetime.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the single connection handle every handler, timer, and sync pass
// goes through (spec §5 "Shared-resource policy").
type Store struct {
	db *sql.DB
}

// Open creates dbPath's parent schema if needed, enables WAL, and returns a
// ready Store. Failure here is a FatalStartupError per spec §7.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", dbPath, err)
	}

	// A single writer connection keeps handler writes serializable (spec
	// §5); WAL lets concurrent readers (the rollup, the cleanup task)
	// proceed without blocking on it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// "duplicate column name" (or equivalent) means a prior run
			// already applied this migration; anything else is swallowed
			// too per spec §9 — the column either exists or the table
			// will simply lack it, never a startup failure.
			_ = err
		}
	}

	if _, err := db.Exec(`INSERT OR IGNORE INTO burn_sync_state (id, last_block, total_burns, last_sync_at) VALUES (1, 0, 0, 0)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed burn_sync_state: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToNullable(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func nullableToBool(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 != 0
	return &b
}
