// Package store opens snapshot databases for querying. Snapshots are
// produced by the mail server and are immutable; every connection here is
// read-only.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Store wraps a read-only connection to a snapshot database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// isSQLiteError checks if err is a sqlite3.Error with a message containing
// substr. Type-asserting via errors.As is more robust than matching on
// err.Error() text from an arbitrary wrapper chain. Handles both value and
// pointer forms of the driver error.
func isSQLiteError(err error, substr string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(sqliteErr.Error(), substr)
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return strings.Contains(sqliteErrPtr.Error(), substr)
	}
	return false
}

// Open opens the snapshot database at path read-only and verifies it is a
// usable snapshot. The immutable flag lets SQLite skip locking entirely,
// which is safe because snapshots never change once materialized.
func Open(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("snapshot file: %w", err)
	}

	dsn := "file:" + url.PathEscape(dbPath) + "?mode=ro&immutable=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snapshot: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.verify(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// verify confirms the core tables are present. A snapshot missing the
// messages table is unusable and the load must fail loudly.
func (s *Store) verify() error {
	for _, table := range []string{"messages", "message_recipients", "projects", "agents"} {
		var count int
		err := s.db.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master
			WHERE type='table' AND name=?
		`, table).Scan(&count)
		if err != nil {
			return fmt.Errorf("probe table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("snapshot is missing table %q", table)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection for the query engine.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the local snapshot file path.
func (s *Store) Path() string {
	return s.dbPath
}

// HasFTS reports whether the snapshot carries a full-text index table.
func (s *Store) HasFTS() bool {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='messages_fts'
	`).Scan(&count)
	return err == nil && count > 0
}

// Stats holds snapshot-level statistics.
type Stats struct {
	MessageCount  int64
	ProjectCount  int64
	AgentCount    int64
	RecipientRows int64
	FTSAvailable  bool
	SnapshotSize  int64
}

// GetStats returns statistics about the snapshot. Missing auxiliary tables
// are tolerated; a missing messages table already failed at Open.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{FTSAvailable: s.HasFTS()}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM messages", &stats.MessageCount},
		{"SELECT COUNT(*) FROM projects", &stats.ProjectCount},
		{"SELECT COUNT(*) FROM agents", &stats.AgentCount},
		{"SELECT COUNT(*) FROM message_recipients", &stats.RecipientRows},
	}

	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			if isSQLiteError(err, "no such table") {
				continue
			}
			return nil, fmt.Errorf("get stats %q: %w", q.query, err)
		}
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.SnapshotSize = info.Size()
	}

	return stats, nil
}
