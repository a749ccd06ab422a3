// Package sqlite implements poll persistence over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Lordhacker756/vortex-api/internal/platform/storage/sqlitemigrate"
	"github.com/Lordhacker756/vortex-api/internal/services/poll"
	"github.com/Lordhacker756/vortex-api/internal/services/poll/storage"
	"github.com/Lordhacker756/vortex-api/internal/services/poll/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements poll persistence over SQLite.
//
// One SQLite file backs the whole aggregate so a ballot's guards and writes
// share a single transaction.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a poll SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	// modernc's driver takes pragmas via repeated _pragma keys. Transactions
	// begin IMMEDIATE so a concurrent writer queues on the busy handler
	// instead of failing a deferred-to-write lock upgrade mid-transaction.
	dsn := cleanPath + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx so reads can run inside
// or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// promoteDuePoll moves a Scheduled poll whose start time has passed to
// Active. Mutating operations run it first inside their transaction so the
// lifecycle they observe is the effective one.
func promoteDuePoll(ctx context.Context, q querier, pollID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
UPDATE polls SET status = ?, updated_at = ?
WHERE id = ? AND status = ? AND start_at <= ?
`, string(poll.StatusActive), toMillis(now), pollID, string(poll.StatusScheduled), toMillis(now))
	if err != nil {
		return fmt.Errorf("promote scheduled poll: %w", err)
	}
	return nil
}

var _ storage.PollStore = (*Store)(nil)
