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

// AddCredential appends a new passkey credential for a user.
//
// An existing credential id is a hard failure so a registration can never
// silently replace another device's public key.
func (s *Store) AddCredential(ctx context.Context, credential storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(credential.CredentialJSON) == "" {
		return fmt.Errorf("credential json is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (credential_id, user_id, credential_json, created_at, updated_at, last_used_at)
VALUES (?, ?, ?, ?, ?, NULL)
ON CONFLICT(credential_id) DO NOTHING
`, credential.CredentialID, credential.UserID, credential.CredentialJSON,
		toMillis(credential.CreatedAt), toMillis(credential.UpdatedAt))
	if err != nil {
		return fmt.Errorf("add credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("add credential rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrCredentialExists
	}
	return nil
}

// UpdateCredential refreshes the stored body and usage time of a known credential.
func (s *Store) UpdateCredential(ctx context.Context, credentialID string, credentialJSON string, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credentialJSON) == "" {
		return fmt.Errorf("credential json is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials
SET credential_json = ?, updated_at = ?, last_used_at = ?
WHERE credential_id = ?
`, credentialJSON, toMillis(usedAt), toMillis(usedAt), credentialID)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetCredential fetches a stored credential by id.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return storage.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Credential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return storage.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential_id, user_id, credential_json, created_at, updated_at, last_used_at
FROM credentials WHERE credential_id = ?
`, credentialID)

	credential, err := scanCredential(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Credential{}, storage.ErrNotFound
		}
		return storage.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return credential, nil
}

// ListCredentialsByUser returns all credentials registered to a user.
func (s *Store) ListCredentialsByUser(ctx context.Context, userID string) ([]storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT credential_id, user_id, credential_json, created_at, updated_at, last_used_at
FROM credentials WHERE user_id = ? ORDER BY created_at
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	credentials := make([]storage.Credential, 0)
	for rows.Next() {
		credential, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}
	return credentials, rows.Err()
}

func scanCredential(scan func(dest ...any) error) (storage.Credential, error) {
	var credential storage.Credential
	var createdAt int64
	var updatedAt int64
	var lastUsedAt sql.NullInt64
	if err := scan(
		&credential.CredentialID,
		&credential.UserID,
		&credential.CredentialJSON,
		&createdAt,
		&updatedAt,
		&lastUsedAt,
	); err != nil {
		return storage.Credential{}, err
	}
	credential.CreatedAt = fromMillis(createdAt)
	credential.UpdatedAt = fromMillis(updatedAt)
	if lastUsedAt.Valid {
		value := fromMillis(lastUsedAt.Int64)
		credential.LastUsedAt = &value
	}
	return credential, nil
}
