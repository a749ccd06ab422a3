package token

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{Secret: "test-secret", TTL: time.Hour, Issuer: "vortex-test"}
}

func TestMintVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer(testConfig())

	signed, err := issuer.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	subject, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer := NewIssuer(testConfig())
	minted := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return minted })

	signed, err := issuer.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	issuer.WithClock(func() time.Time { return minted.Add(2 * time.Hour) })
	if _, err := issuer.Verify(signed); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewIssuer(testConfig()).Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := NewIssuer(Config{Secret: "different-secret", TTL: time.Hour})
	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewIssuer(testConfig())
	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Verify(input); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected invalid token error for %q, got %v", input, err)
		}
	}
}

func TestMintRequiresUserID(t *testing.T) {
	if _, err := NewIssuer(testConfig()).Mint("  "); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestLoadConfigFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("VORTEX_JWT_SECRET", "")

	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected error when signing secret is absent")
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("VORTEX_JWT_SECRET", "s3cret")
	t.Setenv("VORTEX_JWT_TTL", "")
	t.Setenv("VORTEX_JWT_ISSUER", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TTL != 168*time.Hour {
		t.Fatalf("expected 7-day default TTL, got %s", cfg.TTL)
	}
	if cfg.Issuer != "vortex-api" {
		t.Fatalf("unexpected issuer %q", cfg.Issuer)
	}
}
