package token

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the codec's signature scheme.
type SigningMethod string

const (
	// MethodEd25519 signs asymmetrically; verifiers holding only the public
	// key cannot mint tokens.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Verification outcomes. Callers must be able to distinguish garbage from
// tampering from expiry, so these never collapse into one error.
var (
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
)

const minHS256KeyBytes = 32

// Config holds the codec's key material. Keys are process-wide state loaded
// once at startup; NewManager refuses absent or malformed keys rather than
// falling back to a default secret.
type Config struct {
	Method     SigningMethod
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Leeway     time.Duration
}

// Claims is the payload embedded in every session token. It is derived
// state: the durable record is always the session store's row, looked up by
// SessionID.
type Claims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the authenticated identity the token was issued for.
func (c *Claims) SubjectID() string { return c.Subject }

// Manager signs and verifies session tokens. Immutable after construction
// and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates the key material and returns a codec. An error here
// must abort process startup.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.Method {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHS256KeyBytes {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires a public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// Sign issues a token for the given session. A zero expiresAt omits the
// expiry claim, matching session records that never expire automatically.
func (m *Manager) Sign(subjectID, sessionID, role string, expiresAt time.Time) (string, error) {
	if len(m.config.PrivateKey) == 0 {
		return "", errors.New("signing key not configured")
	}

	claims := Claims{
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subjectID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   m.config.Issuer,
		},
	}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}

	tok := jwt.NewWithClaims(m.method(), claims)

	key, err := m.signKey()
	if err != nil {
		return "", err
	}

	return tok.SignedString(key)
}

// Verify checks the signature and expiry of a token and returns its claims.
// Failures map onto exactly one of [ErrMalformed], [ErrBadSignature], or
// [ErrExpired].
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, false)
}

// VerifyAllowExpired checks the signature but accepts an expired token.
// Logout uses it so that a session can still be destroyed after its token
// lapsed.
func (m *Manager) VerifyAllowExpired(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, true)
}

func (m *Manager) parse(tokenStr string, allowExpired bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" && !allowExpired {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey()
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrBadSignature
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	default:
		// Unknown algorithm, wrong issuer, future iat: all unforgeable-key
		// failures from the caller's point of view.
		return ErrBadSignature
	}
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.Method {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.Method {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.Method {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
