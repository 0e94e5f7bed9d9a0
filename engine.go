package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/seminaria/authcore/cookie"
	"github.com/seminaria/authcore/session"
	"github.com/seminaria/authcore/token"
)

// Engine is the session and credential core. It owns the full login
// lifecycle: credential verification, session creation, the per-request
// authentication gate, refresh, and logout. Construct it with [NewBuilder];
// a zero Engine is not usable.
//
// All methods are safe for concurrent use.
type Engine struct {
	config    Config
	store     session.Store
	tokens    *token.Manager
	passwords passwordHasher
	users     UserProvider
	carrier   *cookie.Carrier
	audit     *auditDispatcher
	metrics   *Metrics
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// LoginResult is everything a transport layer needs after a successful
// login: the identity for the current request, the signed token to hand to
// the carrier, and its lifetime.
type LoginResult struct {
	Identity  Identity
	SessionID string
	Token     string

	// ExpiresAt is zero when the session has no automatic expiry.
	ExpiresAt time.Time
	// MaxAge is the cookie lifetime in seconds; 0 means a browser-session
	// cookie.
	MaxAge int
}

// Carrier returns the cookie carrier the engine was built with.
func (e *Engine) Carrier() *cookie.Carrier { return e.carrier }

// Metrics returns the engine's counter registry.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e.audit == nil {
		return 0
	}
	return e.audit.droppedCount()
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e.audit != nil {
		e.audit.close()
	}
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.tokens == nil || e.users == nil {
		return ErrEngineNotReady
	}
	return nil
}

// Login verifies an email/password credential and establishes a session.
// [ErrUserNotFound] and [ErrInvalidCredentials] stay distinct here; the
// transport layer is responsible for rendering them identically to clients.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metrics.inc(MetricLoginFailure)
			e.emitAudit(ctx, auditLoginFailure, "", "", false, ErrUserNotFound)
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	ok, err := e.passwords.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify credential: %w", err)
	}
	if !ok {
		e.metrics.inc(MetricLoginFailure)
		e.emitAudit(ctx, auditLoginFailure, user.SubjectID, "", false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	e.maybeUpgradeHash(ctx, user, password)

	result, err := e.establishSession(ctx, user.SubjectID, user.Role)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditLoginSuccess, user.SubjectID, result.SessionID, true, nil)
	return result, nil
}

// LoginExternal establishes a session for a subject that was authenticated
// out of band (an OAuth callback, for example). No credential is checked
// here; the caller vouches for the subject.
func (e *Engine) LoginExternal(ctx context.Context, subjectID, role string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	result, err := e.establishSession(ctx, subjectID, role)
	if err != nil {
		return nil, err
	}

	e.metrics.inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditLoginSuccess, subjectID, result.SessionID, true, nil)
	return result, nil
}

// establishSession applies the per-subject session policy, creates the
// record, signs a token for it, and attaches the token to the record. The
// token write is the second durable write of the sequence; the record ID
// exists before any token referencing it does.
func (e *Engine) establishSession(ctx context.Context, subjectID, role string) (*LoginResult, error) {
	now := time.Now()

	if e.config.Session.SingleSessionPerSubject {
		if n, err := e.store.InvalidateAllForSubject(ctx, subjectID, now); err != nil {
			return nil, err
		} else if n > 0 {
			e.metrics.inc(MetricSessionInvalidated)
		}
	} else if max := e.config.Session.MaxSessionsPerSubject; max > 0 {
		active, err := e.store.ActiveCountForSubject(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		if active >= max {
			return nil, ErrSessionLimitExceeded
		}
	}

	prov := session.Provenance{
		IPAddress: clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}

	record, err := session.NewRecord(subjectID, role, prov, e.config.Session.Lifetime, now)
	if err != nil {
		return nil, err
	}

	if err := e.store.Create(ctx, record); err != nil {
		return nil, err
	}
	e.metrics.inc(MetricSessionCreated)

	var expiresAt time.Time
	if record.ExpiresAt != nil {
		expiresAt = *record.ExpiresAt
	}

	tokenStr, err := e.tokens.Sign(subjectID, record.ID, role, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := e.store.SetToken(ctx, record.ID, tokenStr); err != nil {
		return nil, err
	}

	return &LoginResult{
		Identity:  Identity{SubjectID: subjectID, Role: role, SessionID: record.ID},
		SessionID: record.ID,
		Token:     tokenStr,
		ExpiresAt: expiresAt,
		MaxAge:    maxAge(expiresAt, now),
	}, nil
}

// Authenticate runs the per-request gate: token signature, session record,
// liveness, and the stored-token equality check. Every rejection is a
// [*Denial] unwrapping to [ErrUnauthorized]; storage outages surface as
// their own error, never as a denial.
func (e *Engine) Authenticate(ctx context.Context, tokenStr string) (*Identity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { e.metrics.observeAuthLatency(time.Since(start)) }()

	if tokenStr == "" {
		return nil, e.deny(ctx, "", "", DeniedNoToken)
	}

	claims, err := e.tokens.Verify(tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return nil, e.deny(ctx, "", "", DeniedExpired)
		default:
			return nil, e.deny(ctx, "", "", DeniedInvalidToken)
		}
	}

	record, err := e.store.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, e.deny(ctx, claims.SubjectID(), claims.SessionID, DeniedNoSession)
		}
		return nil, err
	}

	now := time.Now()
	if !record.IsLive(now) {
		if record.IsActive {
			// Expired but never invalidated: stamp the logout time now.
			// Invalidate is idempotent, so concurrent readers are harmless.
			if err := e.store.Invalidate(ctx, record.ID, now); err == nil {
				e.metrics.inc(MetricSessionExpiredLazily)
			}
		}
		// Any not-live session, whether it ran out or was logged out,
		// reports the same reason.
		return nil, e.deny(ctx, record.SubjectID, record.ID, DeniedExpired)
	}

	// A refresh supersedes earlier tokens: only the last issued token string
	// authenticates, even if an older one still verifies cryptographically.
	if subtle.ConstantTimeCompare([]byte(tokenStr), []byte(record.Token)) != 1 {
		e.metrics.inc(MetricStaleTokenRejected)
		return nil, e.deny(ctx, record.SubjectID, record.ID, DeniedInvalidToken)
	}

	e.metrics.inc(MetricAuthAllowed)
	return &Identity{
		SubjectID: record.SubjectID,
		Role:      record.Role,
		SessionID: record.ID,
	}, nil
}

// RequireRole rejects an authenticated identity whose role does not match.
// The returned denial is indistinguishable from any other to clients.
func (e *Engine) RequireRole(ctx context.Context, identity *Identity, role string) error {
	if identity == nil || (role != "" && identity.Role != role) {
		var subjectID, sessionID string
		if identity != nil {
			subjectID, sessionID = identity.SubjectID, identity.SessionID
		}
		return e.deny(ctx, subjectID, sessionID, DeniedForbidden)
	}
	return nil
}

// RefreshSession extends a live session and issues a replacement token.
// extension <= 0 uses the configured session lifetime. The new expiry and
// the new token land in a single store write, so no observer sees a session
// extended but still carrying the superseded token.
func (e *Engine) RefreshSession(ctx context.Context, sessionID string, extension time.Duration) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	record, err := e.store.Get(ctx, sessionID)
	if err != nil {
		e.refreshFailed(ctx, "", sessionID, err)
		return nil, err
	}

	now := time.Now()
	if !record.IsLive(now) {
		e.refreshFailed(ctx, record.SubjectID, sessionID, session.ErrInactive)
		return nil, session.ErrInactive
	}

	if extension <= 0 {
		extension = e.config.Session.Lifetime
	}

	var expiresAt time.Time
	upd := session.Update{}
	if extension > 0 {
		expiresAt = now.Add(extension)
		upd.ExpiresAt = &expiresAt
	}

	tokenStr, err := e.tokens.Sign(record.SubjectID, record.ID, record.Role, expiresAt)
	if err != nil {
		e.refreshFailed(ctx, record.SubjectID, sessionID, err)
		return nil, err
	}
	upd.Token = &tokenStr

	record, err = e.store.Update(ctx, sessionID, upd)
	if err != nil {
		e.refreshFailed(ctx, "", sessionID, err)
		return nil, err
	}

	e.metrics.inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditRefreshed, record.SubjectID, record.ID, true, nil)

	return &LoginResult{
		Identity:  Identity{SubjectID: record.SubjectID, Role: record.Role, SessionID: record.ID},
		SessionID: record.ID,
		Token:     tokenStr,
		ExpiresAt: expiresAt,
		MaxAge:    maxAge(expiresAt, now),
	}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, subjectID, sessionID string, cause error) {
	e.metrics.inc(MetricRefreshFailure)
	e.emitAudit(ctx, auditRefreshFailure, subjectID, sessionID, false, cause)
}

// Logout invalidates the session referenced by the token. An expired token
// still logs out; a forged or malformed one does not. Logging out an
// already-dead session succeeds silently.
func (e *Engine) Logout(ctx context.Context, tokenStr string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.tokens.VerifyAllowExpired(tokenStr)
	if err != nil {
		return e.deny(ctx, "", "", DeniedInvalidToken)
	}

	err = e.store.Invalidate(ctx, claims.SessionID, time.Now())
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}

	e.metrics.inc(MetricLogout)
	e.emitAudit(ctx, auditLogout, claims.SubjectID(), claims.SessionID, true, nil)
	return nil
}

// LogoutAll invalidates every session of a subject and reports how many
// were live. Used for credential resets and account-wide revocation.
func (e *Engine) LogoutAll(ctx context.Context, subjectID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	n, err := e.store.InvalidateAllForSubject(ctx, subjectID, time.Now())
	if err != nil {
		return n, err
	}

	e.metrics.inc(MetricLogoutAll)
	e.emitAudit(ctx, auditLogoutAll, subjectID, "", true, nil)
	return n, nil
}

func (e *Engine) deny(ctx context.Context, subjectID, sessionID string, reason DeniedReason) error {
	e.metrics.inc(MetricAuthDenied)
	e.emitAuditMeta(ctx, auditDenied, subjectID, sessionID, false, ErrUnauthorized,
		map[string]string{"reason": reason.String()})
	return &Denial{Reason: reason}
}

// maybeUpgradeHash rehashes the password at the configured cost after a
// successful verification against a weaker stored hash. Best effort: a
// failure here never fails the login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *UserRecord, password string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}

	upgrade, err := e.passwords.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}

	hash, err := e.passwords.Hash(password)
	if err != nil {
		return
	}
	_ = e.users.UpdatePasswordHash(ctx, user.SubjectID, hash)
}

func maxAge(expiresAt, now time.Time) int {
	if expiresAt.IsZero() {
		return 0
	}
	return int(expiresAt.Sub(now) / time.Second)
}
