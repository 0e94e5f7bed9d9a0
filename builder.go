package authcore

import (
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/seminaria/authcore/cookie"
	"github.com/seminaria/authcore/password"
	"github.com/seminaria/authcore/session"
	"github.com/seminaria/authcore/token"
)

// Builder assembles an Engine. Configuration and key material are validated
// at Build time; a misconfigured engine is never handed out.
type Builder struct {
	config      Config
	store       session.Store
	users       UserProvider
	auditSink   AuditSink
	redisClient redis.UniversalClient
	redisPrefix string
	db          *sql.DB
}

// NewBuilder starts from [DefaultConfig].
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis selects a Redis-backed session store. prefix namespaces the
// keys; empty picks a default.
func (b *Builder) WithRedis(client redis.UniversalClient, prefix string) *Builder {
	b.redisClient = client
	b.redisPrefix = prefix
	return b
}

// WithPostgres selects a Postgres-backed session store. The caller owns the
// handle and is responsible for EnsureSchema on fresh databases.
func (b *Builder) WithPostgres(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithStore supplies a custom session store, overriding WithRedis and
// WithPostgres.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithUserProvider wires the external user-account storage. Required.
func (b *Builder) WithUserProvider(users UserProvider) *Builder {
	b.users = users
	return b
}

// WithAuditSink sets the destination for audit events. Without one, events
// are dropped via [NoOpSink] even when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and constructs the engine. Key-material
// errors surface here, not at first use.
func (b *Builder) Build() (*Engine, error) {
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user provider is required")
	}

	store := b.store
	switch {
	case store != nil:
	case b.redisClient != nil:
		store = session.NewRedisStore(b.redisClient, b.redisPrefix, b.config.Session.Retention)
	case b.db != nil:
		store = session.NewPostgresStore(b.db)
	default:
		return nil, errors.New("session store is required")
	}

	tokens, err := token.NewManager(token.Config{
		Method:     token.SigningMethod(b.config.Token.SigningMethod),
		PrivateKey: b.config.Token.PrivateKey,
		PublicKey:  b.config.Token.PublicKey,
		Issuer:     b.config.Token.Issuer,
		Leeway:     b.config.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	passwords, err := password.NewBcrypt(password.Config{Cost: b.config.Password.Cost})
	if err != nil {
		return nil, err
	}

	carrier, err := cookie.New(b.config.Cookie.Name, b.config.Cookie.Secure)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    b.config,
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		users:     b.users,
		carrier:   carrier,
		metrics:   newMetrics(b.config.Metrics),
	}

	if b.config.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NoOpSink{}
		}
		engine.audit = newAuditDispatcher(sink, b.config.Audit.BufferSize, b.config.Audit.DropIfFull)
	}

	return engine, nil
}
