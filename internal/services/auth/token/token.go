// Package token mints and verifies the bearer tokens that prove a caller's
// identity after a completed passkey ceremony.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/Lordhacker756/vortex-api/internal/platform/errors"
)

var (
	// ErrInvalidToken indicates a malformed or badly signed token.
	ErrInvalidToken = apperrors.New(apperrors.CodeTokenInvalid, "bearer token is invalid")
	// ErrExpiredToken indicates a token past its expiry.
	ErrExpiredToken = apperrors.New(apperrors.CodeTokenExpired, "bearer token has expired")
)

// Config controls bearer token issuance.
//
// The signing secret has no default: a process serving tokens signed with a
// guessable secret is worse than one that refuses to start.
type Config struct {
	Secret string        `env:"VORTEX_JWT_SECRET"`
	TTL    time.Duration `env:"VORTEX_JWT_TTL"    envDefault:"168h"`
	Issuer string        `env:"VORTEX_JWT_ISSUER" envDefault:"vortex-api"`
}

// LoadConfigFromEnv reads token configuration, failing when the signing
// secret is absent.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return Config{}, fmt.Errorf("VORTEX_JWT_SECRET is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 168 * time.Hour
	}
	return cfg, nil
}

// Issuer mints and verifies HS256 bearer tokens.
type Issuer struct {
	config Config
	clock  func() time.Time
}

// NewIssuer builds an issuer from validated configuration.
func NewIssuer(config Config) *Issuer {
	return &Issuer{config: config, clock: time.Now}
}

// WithClock overrides time for tests.
func (i *Issuer) WithClock(clock func() time.Time) *Issuer {
	i.clock = clock
	return i
}

// TTL reports how long minted tokens stay valid.
func (i *Issuer) TTL() time.Duration {
	return i.config.TTL
}

// Mint signs a bearer token whose subject is the given user id.
func (i *Issuer) Mint(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	now := i.clock().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a bearer token and returns its subject user id.
func (i *Issuer) Verify(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return []byte(i.config.Secret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return i.clock().UTC() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
