package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Lordhacker756/vortex-api/internal/services/auth/storage"
	"github.com/Lordhacker756/vortex-api/internal/services/auth/user"
)

// PutUser persists a user record, updating timestamps on replacement.
func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, username, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET username = excluded.username, updated_at = excluded.updated_at
`, u.ID, u.Username, toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return user.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, username, created_at, updated_at FROM users WHERE id = ?
`, userID)
	return scanUser(row)
}

// GetUserByUsername fetches a user by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(username) == "" {
		return user.User{}, fmt.Errorf("username is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, username, created_at, updated_at FROM users WHERE username = ?
`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(&u.ID, &u.Username, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}
