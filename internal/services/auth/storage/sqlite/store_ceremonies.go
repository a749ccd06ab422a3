package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lordhacker756/vortex-api/internal/services/auth/storage"
)

// BeginCeremony stores ceremony state, replacing any prior ceremony with the
// same id. Issuing a fresh challenge always invalidates the stale attempt.
func (s *Store) BeginCeremony(ctx context.Context, ceremony storage.Ceremony) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(ceremony.ID) == "" {
		return fmt.Errorf("ceremony id is required")
	}
	if strings.TrimSpace(ceremony.Kind) == "" {
		return fmt.Errorf("ceremony kind is required")
	}
	if strings.TrimSpace(ceremony.StateJSON) == "" {
		return fmt.Errorf("ceremony state json is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO ceremonies (id, kind, user_id, username, state_json, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    kind = excluded.kind,
    user_id = excluded.user_id,
    username = excluded.username,
    state_json = excluded.state_json,
    created_at = excluded.created_at,
    expires_at = excluded.expires_at
`, ceremony.ID, ceremony.Kind, ceremony.UserID, ceremony.Username,
		ceremony.StateJSON, toMillis(ceremony.CreatedAt), toMillis(ceremony.ExpiresAt))
	if err != nil {
		return fmt.Errorf("begin ceremony: %w", err)
	}
	return nil
}

// TakeCeremony atomically reads and deletes a live ceremony.
//
// The single DELETE ... RETURNING statement is the at-most-once guarantee:
// two concurrent takers race on the row delete and exactly one receives it.
// Expired rows are left in place for the purge janitor and reported as
// absent.
func (s *Store) TakeCeremony(ctx context.Context, id string, now time.Time) (storage.Ceremony, error) {
	if err := ctx.Err(); err != nil {
		return storage.Ceremony{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Ceremony{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.Ceremony{}, fmt.Errorf("ceremony id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
DELETE FROM ceremonies
WHERE id = ? AND expires_at > ?
RETURNING id, kind, user_id, username, state_json, created_at, expires_at
`, id, toMillis(now))

	var ceremony storage.Ceremony
	var createdAt int64
	var expiresAt int64
	if err := row.Scan(
		&ceremony.ID,
		&ceremony.Kind,
		&ceremony.UserID,
		&ceremony.Username,
		&ceremony.StateJSON,
		&createdAt,
		&expiresAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Ceremony{}, storage.ErrNotFound
		}
		return storage.Ceremony{}, fmt.Errorf("take ceremony: %w", err)
	}
	ceremony.CreatedAt = fromMillis(createdAt)
	ceremony.ExpiresAt = fromMillis(expiresAt)
	return ceremony, nil
}

// DeleteExpiredCeremonies purges ceremony rows past their expiry.
func (s *Store) DeleteExpiredCeremonies(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM ceremonies WHERE expires_at <= ?
`, toMillis(now))
	if err != nil {
		return fmt.Errorf("delete expired ceremonies: %w", err)
	}
	return nil
}
