package ceremony

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Kind describes the ceremony purpose.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindLogin        Kind = "login"
)

// ID derives the storage key for a ceremony. One live ceremony exists per
// (kind, username) pair; starting a new one replaces the old.
func ID(kind Kind, username string) string {
	return string(kind) + ":" + username
}

// Config controls WebAuthn relying party settings and ceremony lifetime.
type Config struct {
	RPDisplayName string        `env:"VORTEX_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"Vortex"`
	RPID          string        `env:"VORTEX_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string      `env:"VORTEX_WEBAUTHN_RP_ORIGINS"      envSeparator:","`
	SessionTTL    time.Duration `env:"VORTEX_WEBAUTHN_SESSION_TTL"     envDefault:"5m"`
}

// LoadConfigFromEnv reads relying party configuration. Malformed values are
// a startup error rather than a silent fall back to defaults.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse webauthn env: %w", err)
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = "Vortex"
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:9000"}
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("VORTEX_WEBAUTHN_SESSION_TTL must be positive")
	}
	return cfg, nil
}
