package envconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	authcore "github.com/seminaria/authcore"
)

// Store backend selectors.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Settings is the full process configuration assembled from the environment:
// which session store to connect to, how, and the engine configuration.
type Settings struct {
	Store       string
	RedisAddr   string
	RedisPrefix string
	PostgresDSN string

	Auth authcore.Config
}

// Load reads configuration from a .env file (if present) and the process
// environment, under the AUTH_ prefix. Missing signing-key material is a
// hard error: the process must not come up with an unusable codec.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	} else {
		// Best effort; a missing .env just means pure-environment config.
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("auth")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := authcore.DefaultConfig()
	v.SetDefault("store", StoreRedis)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "sess")
	v.SetDefault("token.signing_method", defaults.Token.SigningMethod)
	v.SetDefault("token.leeway", defaults.Token.Leeway)
	v.SetDefault("session.lifetime", defaults.Session.Lifetime)
	v.SetDefault("session.retention", defaults.Session.Retention)
	v.SetDefault("session.single", false)
	v.SetDefault("session.max", 0)
	v.SetDefault("cookie.name", defaults.Cookie.Name)
	v.SetDefault("cookie.secure", true)
	v.SetDefault("password.cost", defaults.Password.Cost)
	v.SetDefault("password.upgrade_on_login", defaults.Password.UpgradeOnLogin)
	v.SetDefault("audit.enabled", defaults.Audit.Enabled)
	v.SetDefault("audit.buffer_size", defaults.Audit.BufferSize)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)

	settings := &Settings{
		Store:       strings.ToLower(v.GetString("store")),
		RedisAddr:   v.GetString("redis.addr"),
		RedisPrefix: v.GetString("redis.prefix"),
		PostgresDSN: v.GetString("postgres.dsn"),
		Auth: authcore.Config{
			Token: authcore.TokenConfig{
				SigningMethod: v.GetString("token.signing_method"),
				Issuer:        v.GetString("token.issuer"),
				Leeway:        v.GetDuration("token.leeway"),
			},
			Session: authcore.SessionConfig{
				Lifetime:                v.GetDuration("session.lifetime"),
				Retention:               v.GetDuration("session.retention"),
				SingleSessionPerSubject: v.GetBool("session.single"),
				MaxSessionsPerSubject:   v.GetInt("session.max"),
			},
			Cookie: authcore.CookieConfig{
				Name:   v.GetString("cookie.name"),
				Secure: v.GetBool("cookie.secure"),
			},
			Password: authcore.PasswordConfig{
				Cost:           v.GetInt("password.cost"),
				UpgradeOnLogin: v.GetBool("password.upgrade_on_login"),
			},
			Audit: authcore.AuditConfig{
				Enabled:    v.GetBool("audit.enabled"),
				BufferSize: v.GetInt("audit.buffer_size"),
				DropIfFull: true,
			},
			Metrics: authcore.MetricsConfig{
				Enabled:                 v.GetBool("metrics.enabled"),
				EnableLatencyHistograms: v.GetBool("metrics.latency_histograms"),
			},
		},
	}

	if err := loadKeys(v, &settings.Auth.Token); err != nil {
		return nil, err
	}

	switch settings.Store {
	case StoreRedis:
		if settings.RedisAddr == "" {
			return nil, errors.New("AUTH_REDIS_ADDR must be set for the redis store")
		}
	case StorePostgres:
		if settings.PostgresDSN == "" {
			return nil, errors.New("AUTH_POSTGRES_DSN must be set for the postgres store")
		}
	default:
		return nil, fmt.Errorf("unknown store %q (want %q or %q)", settings.Store, StoreRedis, StorePostgres)
	}

	return settings, nil
}

// loadKeys resolves signing-key material, either inline or from key files.
// There is no default secret to fall back to.
func loadKeys(v *viper.Viper, cfg *authcore.TokenConfig) error {
	var err error
	if cfg.PrivateKey, err = keyMaterial(v, "token.private_key", "token.private_key_file"); err != nil {
		return err
	}
	if cfg.PublicKey, err = keyMaterial(v, "token.public_key", "token.public_key_file"); err != nil {
		return err
	}

	switch cfg.SigningMethod {
	case "hs256":
		if len(cfg.PrivateKey) == 0 {
			return errors.New("AUTH_TOKEN_PRIVATE_KEY (or _FILE) must be set for hs256")
		}
	case "ed25519":
		if len(cfg.PublicKey) == 0 {
			return errors.New("AUTH_TOKEN_PUBLIC_KEY (or _FILE) must be set for ed25519")
		}
	default:
		return fmt.Errorf("unknown signing method %q", cfg.SigningMethod)
	}
	return nil
}

func keyMaterial(v *viper.Viper, inlineKey, fileKey string) ([]byte, error) {
	if inline := v.GetString(inlineKey); inline != "" {
		return []byte(inline), nil
	}
	if path := v.GetString(fileKey); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}
		return data, nil
	}
	return nil, nil
}
