package authcore

import "errors"

var (
	// ErrUnauthorized is the single signal every authentication denial
	// unwraps to. The concrete reason is carried by [Denial] and is meant
	// for audit logging only, never for the client response.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned when a presented password does not
	// match the stored credential.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when no credential exists for the lookup key.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned by Register for a duplicate email.
	ErrUserExists = errors.New("user already exists")
	// ErrSessionLimitExceeded is returned when the per-subject session policy
	// rejects a new login.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")
	// ErrEngineNotReady is returned when an Engine method is invoked before
	// the builder wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// DeniedReason classifies why the authentication gate rejected a request.
// Reasons are internal: callers surface every denial identically.
type DeniedReason uint8

const (
	// DeniedNoToken: the carrier found no token on the request.
	DeniedNoToken DeniedReason = iota + 1
	// DeniedInvalidToken: malformed token, bad signature, or a stale token
	// string superseded by a refresh.
	DeniedInvalidToken
	// DeniedExpired: the token has expired, or the session record is no
	// longer live (timed out or invalidated).
	DeniedExpired
	// DeniedNoSession: the token verified but references no session record.
	DeniedNoSession
	// DeniedForbidden: the session is live but its role does not satisfy the
	// protected resource.
	DeniedForbidden
)

func (r DeniedReason) String() string {
	switch r {
	case DeniedNoToken:
		return "no_token"
	case DeniedInvalidToken:
		return "invalid_token"
	case DeniedExpired:
		return "expired"
	case DeniedNoSession:
		return "no_session"
	case DeniedForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Denial is the error returned for every gate rejection. Its message is
// deliberately uniform; the reason is for logs.
type Denial struct {
	Reason DeniedReason
}

func (d *Denial) Error() string { return "unauthorized" }

func (d *Denial) Unwrap() error { return ErrUnauthorized }

// DeniedWith reports whether err is a gate denial with the given reason.
func DeniedWith(err error, reason DeniedReason) bool {
	var d *Denial
	return errors.As(err, &d) && d.Reason == reason
}
