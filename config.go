package authcore

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config is the process-wide configuration of the engine. It is loaded once
// at startup, validated at Build time, and treated as immutable afterwards.
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	Cookie   CookieConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds the signing key material for the token codec. There is
// no default secret: Build fails when keys are absent or malformed.
type TokenConfig struct {
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session record lifecycle.
//
// Lifetime <= 0 creates sessions without automatic expiry. Supported, but
// discouraged; DefaultConfig uses 24 hours.
type SessionConfig struct {
	Lifetime time.Duration
	// Retention is how long an invalidated or expired record stays readable
	// in stores that evict (the Redis backend). Zero keeps records until the
	// backend's own horizon.
	Retention time.Duration
	// SingleSessionPerSubject invalidates all existing sessions of a subject
	// on every new login.
	SingleSessionPerSubject bool
	// MaxSessionsPerSubject rejects logins past the cap. Zero means
	// unlimited, the default policy.
	MaxSessionsPerSubject int
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the session cookie. All other cookie attributes are
// fixed policy (HttpOnly, Path=/, SameSite=Lax) and not configurable.
type CookieConfig struct {
	Name   string
	Secure bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig tunes the bcrypt cost factor.
type PasswordConfig struct {
	Cost           int
	UpgradeOnLogin bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration: 24h sessions, the
// "__session" cookie, bcrypt cost 10, audit and metrics enabled. Signing
// keys are intentionally absent and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			Lifetime:  24 * time.Hour,
			Retention: 24 * time.Hour,
		},
		Cookie: CookieConfig{
			Name: "__session",
		},
		Password: PasswordConfig{
			Cost:           10,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Cookie.Name == "" {
		return errors.New("cookie name must be set")
	}
	if cfg.Session.Retention < 0 {
		return errors.New("session retention must not be negative")
	}
	if cfg.Session.MaxSessionsPerSubject < 0 {
		return errors.New("max sessions per subject must not be negative")
	}
	if cfg.Password.Cost < bcrypt.MinCost || cfg.Password.Cost > bcrypt.MaxCost {
		return errors.New("bcrypt cost out of range")
	}
	return nil
}
