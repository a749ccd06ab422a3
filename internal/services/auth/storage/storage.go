// Package storage defines the persistence contracts for auth data.
package storage

import (
	"context"
	"time"

	"github.com/Lordhacker756/vortex-api/internal/platform/errors"
	"github.com/Lordhacker756/vortex-api/internal/services/auth/user"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrCredentialExists indicates an attempt to overwrite a stored credential.
var ErrCredentialExists = errors.New(errors.CodeUnknown, "credential already registered")

// UserStore persists identity records.
type UserStore interface {
	PutUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
}

// Credential stores a WebAuthn credential for a user.
//
// CredentialJSON is the verifier's own serialized credential (public key,
// sign counter, attestation metadata); this layer treats it as opaque.
type Credential struct {
	CredentialID   string
	UserID         string
	CredentialJSON string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastUsedAt     *time.Time
}

// CredentialStore persists registered passkey credentials.
//
// Credentials are append-only: AddCredential refuses to replace an existing
// record, and UpdateCredential only refreshes the body and usage timestamp
// of a credential that is already registered.
type CredentialStore interface {
	AddCredential(ctx context.Context, credential Credential) error
	UpdateCredential(ctx context.Context, credentialID string, credentialJSON string, usedAt time.Time) error
	GetCredential(ctx context.Context, credentialID string) (Credential, error)
	ListCredentialsByUser(ctx context.Context, userID string) ([]Credential, error)
}

// Ceremony stores one in-flight WebAuthn challenge round.
//
// StateJSON is the verifier's opaque session state; Kind tags whether the
// round is a registration or a login so a response for one can never finish
// the other.
type Ceremony struct {
	ID        string
	Kind      string
	UserID    string
	Username  string
	StateJSON string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CeremonyStore persists ephemeral ceremony state.
//
// BeginCeremony replaces any prior ceremony stored under the same id, so a
// fresh challenge always invalidates a stale attempt for the same subject
// and kind. TakeCeremony atomically reads and deletes: of two concurrent
// takers for one id, exactly one observes the ceremony. Rows past their
// expiry are treated as absent by TakeCeremony even before the purge runs.
type CeremonyStore interface {
	BeginCeremony(ctx context.Context, ceremony Ceremony) error
	TakeCeremony(ctx context.Context, id string, now time.Time) (Ceremony, error)
	DeleteExpiredCeremonies(ctx context.Context, now time.Time) error
}
