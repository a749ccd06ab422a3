// Package user provides auth user management.
package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/Lordhacker756/vortex-api/internal/platform/errors"
	"github.com/Lordhacker756/vortex-api/internal/platform/id"
)

var (
	// ErrEmptyUsername indicates a missing username.
	ErrEmptyUsername = apperrors.New(apperrors.CodeUserEmptyUsername, "username is required")
	// ErrInvalidUsername indicates a username that does not match the required format.
	ErrInvalidUsername = apperrors.New(apperrors.CodeUserInvalidUsername, "username must be 3-32 lowercase alphanumeric, dot, dash, or underscore characters")

	usernamePattern = regexp.MustCompile(`^[a-z0-9_.\-]{3,32}$`)
)

// User represents an authenticated identity record.
//
// Registered passkey credentials are stored alongside the user by the
// credential store; the user row itself stays small and immutable apart
// from its update timestamp.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeUsername trims and lowercases a username and validates it.
//
// This is the canonical point where untrusted usernames become stable
// identity keys used by ceremonies, tokens, and polls.
func NormalizeUsername(s string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return "", ErrEmptyUsername
	}
	if !usernamePattern.MatchString(normalized) {
		return "", ErrInvalidUsername
	}
	return normalized, nil
}

// New creates a durable user identity for a normalized username.
func New(username string, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeUsername(username)
	if err != nil {
		return User{}, err
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:        userID,
		Username:  normalized,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
