// Package store is the Store (C6): the persistent, referentially-integral
// record of files, jobs, tags, and user decisions. It is backed by
// modernc.org/sqlite (pure Go, no cgo) so the CLI stays a single static
// binary, matching the teacher's driver choice in database.go.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"
)

// minBusyTimeout is spec.md §4.6's floor: "a busy-retry timeout of at least
// 5 s, so the HTTP layer and the worker pool can share it from different
// processes without starvation."
const minBusyTimeout = 5 * time.Second

// Store wraps a *sql.DB with the migration, WAL, and retry policy spec.md
// §4.6 requires, plus the typed accessors the rest of the system calls.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path, runs pending
// migrations, and enables WAL journaling with a busy timeout of at least
// 5 seconds.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, minBusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single writer lock is acceptable per spec.md §4.6; modernc.org/sqlite
	// serializes writers internally, but capping Go-level connections avoids
	// spurious SQLITE_BUSY churn under the worker pool's concurrent commits.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", minBusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withRetry runs fn, retrying on SQLITE_BUSY with a short exponential
// backoff, per spec.md §7's "short retries with backoff inside the Store
// wrapper; exhausted retries propagate as Scheduler failure."
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(20*time.Millisecond),
			backoff.WithMaxInterval(500*time.Millisecond),
		), 6), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isBusyError(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, policy)
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "SQLITE_BUSY") || contains(msg, "database is locked")
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

// BeginTx starts a short transaction; callers own commit/rollback, matching
// spec.md §4.6's "writers use explicit begin/commit; the Scheduler controls
// commit boundaries."
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// WithRetry runs fn, retrying on SQLITE_BUSY with backoff, then propagating
// any other (or finally-exhausted) error to the caller, per spec.md §7.
func (s *Store) WithRetry(ctx context.Context, fn func() error) error {
	return s.withRetry(ctx, fn)
}
