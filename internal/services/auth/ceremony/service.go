// Package ceremony drives the two-round WebAuthn challenge/response
// protocol for passkey registration and login.
//
// Each round persists its verifier state through the ceremony store and is
// consumed at most once: a signed response can finish exactly one ceremony,
// and a failed verification burns the attempt.
package ceremony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	apperrors "github.com/Lordhacker756/vortex-api/internal/platform/errors"
	"github.com/Lordhacker756/vortex-api/internal/platform/id"
	"github.com/Lordhacker756/vortex-api/internal/services/auth/storage"
	"github.com/Lordhacker756/vortex-api/internal/services/auth/token"
	"github.com/Lordhacker756/vortex-api/internal/services/auth/user"
)

var (
	// ErrNoCeremony indicates no live ceremony exists for the subject.
	ErrNoCeremony = apperrors.New(apperrors.CodeCeremonyNotFound, "no active ceremony for this user")
	// ErrSubjectMismatch indicates the ceremony belongs to a different subject.
	ErrSubjectMismatch = apperrors.New(apperrors.CodeCeremonySubjectMismatch, "ceremony subject mismatch")
	// ErrVerificationFailed covers every credential verification failure.
	// Unknown credentials and bad signatures deliberately collapse into this
	// one error so callers cannot enumerate accounts.
	ErrVerificationFailed = apperrors.New(apperrors.CodeVerificationFailed, "credential verification failed")
	// ErrUserNotFound indicates an unknown username at login start.
	ErrUserNotFound = apperrors.New(apperrors.CodeUserNotFound, "user not found")
	// ErrNoCredentials indicates an identity with no registered passkeys.
	ErrNoCredentials = apperrors.New(apperrors.CodeUserNoCredentials, "user has no registered credentials")
)

// Verifier is the external credential verification capability.
//
// Given stored challenge state and a signed response it either produces a
// verified credential or fails; this service never inspects signatures
// itself. *webauthn.WebAuthn satisfies it.
type Verifier interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

// Parser decodes raw signed responses from the client.
type Parser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultParser struct{}

func (defaultParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Service orchestrates registration and login ceremonies.
type Service struct {
	users       storage.UserStore
	credentials storage.CredentialStore
	ceremonies  storage.CeremonyStore
	tokens      *token.Issuer
	config      Config
	verifier    Verifier
	initErr     error
	parser      Parser
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService builds a ceremony service with a WebAuthn verifier for the
// given relying party configuration.
func NewService(users storage.UserStore, credentials storage.CredentialStore, ceremonies storage.CeremonyStore, tokens *token.Issuer, config Config) *Service {
	webAuthn, err := webauthn.New(&webauthn.Config{
		RPDisplayName: config.RPDisplayName,
		RPID:          config.RPID,
		RPOrigins:     config.RPOrigins,
	})
	return &Service{
		users:       users,
		credentials: credentials,
		ceremonies:  ceremonies,
		tokens:      tokens,
		config:      config,
		verifier:    webAuthn,
		initErr:     err,
		parser:      defaultParser{},
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// WithVerifier overrides the credential verifier, for tests.
func (s *Service) WithVerifier(verifier Verifier, parser Parser) *Service {
	s.verifier = verifier
	s.initErr = nil
	if parser != nil {
		s.parser = parser
	}
	return s
}

// WithClock overrides time, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// WithIDGenerator overrides id generation, for tests.
func (s *Service) WithIDGenerator(idGenerator func() (string, error)) *Service {
	s.idGenerator = idGenerator
	return s
}

func (s *Service) ready() error {
	if s.users == nil || s.credentials == nil || s.ceremonies == nil {
		return fmt.Errorf("ceremony service storage is not configured")
	}
	if s.initErr != nil || s.verifier == nil {
		return fmt.Errorf("credential verifier is not available: %w", s.initErr)
	}
	return nil
}

// StartRegistration issues a registration challenge for a username.
//
// The candidate user id is stable for known usernames so a user can add a
// second credential; existing credential ids are excluded from the
// challenge to keep one device from registering twice.
func (s *Service) StartRegistration(ctx context.Context, username string) (*protocol.CredentialCreation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	normalized, err := user.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	userID := ""
	existing, err := s.users.GetUserByUsername(ctx, normalized)
	switch {
	case err == nil:
		userID = existing.ID
	case apperrors.CodeOf(err) == apperrors.CodeNotFound:
		userID, err = s.idGenerator()
		if err != nil {
			return nil, fmt.Errorf("generate user id: %w", err)
		}
	default:
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	subject, err := s.loadCeremonyUser(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if len(subject.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(subject.credentials).CredentialDescriptors()))
	}

	creation, session, err := s.verifier.BeginRegistration(subject, options...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "begin registration challenge", err)
	}

	if err := s.beginCeremony(ctx, KindRegistration, userID, normalized, session); err != nil {
		return nil, err
	}
	return creation, nil
}

// FinishRegistration consumes the registration ceremony and, on verified
// attestation, appends the new credential to the identity (creating it on
// first success) and mints a bearer token.
func (s *Service) FinishRegistration(ctx context.Context, username string, signedResponse []byte) (user.User, string, error) {
	if err := s.ready(); err != nil {
		return user.User{}, "", err
	}
	normalized, err := user.NormalizeUsername(username)
	if err != nil {
		return user.User{}, "", err
	}

	ceremony, err := s.takeCeremony(ctx, KindRegistration, normalized)
	if err != nil {
		return user.User{}, "", err
	}

	// The ceremony is consumed at this point: every failure below is
	// terminal until a fresh StartRegistration.
	parsed, err := s.parser.ParseCredentialCreationResponseBytes(signedResponse)
	if err != nil {
		return user.User{}, "", ErrVerificationFailed
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(ceremony.StateJSON), &session); err != nil {
		return user.User{}, "", fmt.Errorf("decode ceremony state: %w", err)
	}

	identity, exists, err := s.resolveIdentity(ctx, ceremony)
	if err != nil {
		return user.User{}, "", err
	}
	subject, err := s.loadCeremonyUser(ctx, identity.ID, identity.Username)
	if err != nil {
		return user.User{}, "", err
	}

	credential, err := s.verifier.CreateCredential(subject, session, parsed)
	if err != nil {
		return user.User{}, "", ErrVerificationFailed
	}

	now := s.clock().UTC()
	if !exists {
		if err := s.users.PutUser(ctx, identity); err != nil {
			return user.User{}, "", fmt.Errorf("create identity: %w", err)
		}
	}

	credentialJSON, err := json.Marshal(credential)
	if err != nil {
		return user.User{}, "", fmt.Errorf("encode credential: %w", err)
	}
	if err := s.credentials.AddCredential(ctx, storage.Credential{
		CredentialID:   encodeCredentialID(credential.ID),
		UserID:         identity.ID,
		CredentialJSON: string(credentialJSON),
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		if errors.Is(err, storage.ErrCredentialExists) {
			return user.User{}, "", ErrVerificationFailed
		}
		return user.User{}, "", fmt.Errorf("store credential: %w", err)
	}

	signed, err := s.tokens.Mint(identity.ID)
	if err != nil {
		return user.User{}, "", fmt.Errorf("mint bearer token: %w", err)
	}
	return identity, signed, nil
}

// StartLogin issues an authentication challenge over the identity's
// registered credential ids.
func (s *Service) StartLogin(ctx context.Context, username string) (*protocol.CredentialAssertion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	normalized, err := user.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	identity, err := s.users.GetUserByUsername(ctx, normalized)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	subject, err := s.loadCeremonyUser(ctx, identity.ID, identity.Username)
	if err != nil {
		return nil, err
	}
	if len(subject.credentials) == 0 {
		return nil, ErrNoCredentials
	}

	assertion, session, err := s.verifier.BeginLogin(subject)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "begin login challenge", err)
	}

	if err := s.beginCeremony(ctx, KindLogin, identity.ID, normalized, session); err != nil {
		return nil, err
	}
	return assertion, nil
}

// FinishLogin consumes the login ceremony and, on verified assertion,
// advances the credential's replay counter and mints a bearer token.
//
// A non-advancing sign counter (clone warning) is a verification failure,
// never a silent success.
func (s *Service) FinishLogin(ctx context.Context, username string, signedResponse []byte) (user.User, string, error) {
	if err := s.ready(); err != nil {
		return user.User{}, "", err
	}
	normalized, err := user.NormalizeUsername(username)
	if err != nil {
		return user.User{}, "", err
	}

	ceremony, err := s.takeCeremony(ctx, KindLogin, normalized)
	if err != nil {
		return user.User{}, "", err
	}

	parsed, err := s.parser.ParseCredentialRequestResponseBytes(signedResponse)
	if err != nil {
		return user.User{}, "", ErrVerificationFailed
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(ceremony.StateJSON), &session); err != nil {
		return user.User{}, "", fmt.Errorf("decode ceremony state: %w", err)
	}

	identity, err := s.users.GetUser(ctx, ceremony.UserID)
	if err != nil {
		// The account vanished between rounds; indistinguishable from a
		// bad credential on purpose.
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return user.User{}, "", ErrVerificationFailed
		}
		return user.User{}, "", fmt.Errorf("resolve user: %w", err)
	}
	subject, err := s.loadCeremonyUser(ctx, identity.ID, identity.Username)
	if err != nil {
		return user.User{}, "", err
	}

	credential, err := s.verifier.ValidateLogin(subject, session, parsed)
	if err != nil {
		return user.User{}, "", ErrVerificationFailed
	}
	if credential.Authenticator.CloneWarning {
		return user.User{}, "", ErrVerificationFailed
	}

	credentialJSON, err := json.Marshal(credential)
	if err != nil {
		return user.User{}, "", fmt.Errorf("encode credential: %w", err)
	}
	if err := s.credentials.UpdateCredential(ctx, encodeCredentialID(credential.ID), string(credentialJSON), s.clock().UTC()); err != nil {
		return user.User{}, "", fmt.Errorf("update credential: %w", err)
	}

	signed, err := s.tokens.Mint(identity.ID)
	if err != nil {
		return user.User{}, "", fmt.Errorf("mint bearer token: %w", err)
	}
	return identity, signed, nil
}

func (s *Service) beginCeremony(ctx context.Context, kind Kind, userID, username string, session *webauthn.SessionData) error {
	if session == nil {
		return fmt.Errorf("verifier session data is required")
	}
	stateJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode ceremony state: %w", err)
	}
	now := s.clock().UTC()
	if err := s.ceremonies.BeginCeremony(ctx, storage.Ceremony{
		ID:        ID(kind, username),
		Kind:      string(kind),
		UserID:    userID,
		Username:  username,
		StateJSON: string(stateJSON),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionTTL),
	}); err != nil {
		return fmt.Errorf("store ceremony: %w", err)
	}
	return nil
}

func (s *Service) takeCeremony(ctx context.Context, kind Kind, username string) (storage.Ceremony, error) {
	ceremony, err := s.ceremonies.TakeCeremony(ctx, ID(kind, username), s.clock().UTC())
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return storage.Ceremony{}, ErrNoCeremony
		}
		return storage.Ceremony{}, fmt.Errorf("take ceremony: %w", err)
	}
	if ceremony.Kind != string(kind) {
		return storage.Ceremony{}, ErrNoCeremony
	}
	if ceremony.Username != username {
		return storage.Ceremony{}, ErrSubjectMismatch
	}
	return ceremony, nil
}

// resolveIdentity returns the durable identity for a finished registration
// ceremony, or a pending one carrying the ceremony's candidate user id.
func (s *Service) resolveIdentity(ctx context.Context, ceremony storage.Ceremony) (user.User, bool, error) {
	existing, err := s.users.GetUserByUsername(ctx, ceremony.Username)
	if err == nil {
		return existing, true, nil
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return user.User{}, false, fmt.Errorf("resolve identity: %w", err)
	}
	now := s.clock().UTC()
	return user.User{
		ID:        ceremony.UserID,
		Username:  ceremony.Username,
		CreatedAt: now,
		UpdatedAt: now,
	}, false, nil
}

type ceremonyUser struct {
	id          string
	name        string
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.id)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.name
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.name
}

func (u *ceremonyUser) WebAuthnIcon() string {
	return ""
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func (s *Service) loadCeremonyUser(ctx context.Context, userID, username string) (*ceremonyUser, error) {
	records, err := s.credentials.ListCredentialsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		var credential webauthn.Credential
		if err := json.Unmarshal([]byte(record.CredentialJSON), &credential); err != nil {
			return nil, fmt.Errorf("decode credential %s: %w", record.CredentialID, err)
		}
		credentials = append(credentials, credential)
	}
	return &ceremonyUser{id: userID, name: username, credentials: credentials}, nil
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
