package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	authcore "github.com/seminaria/authcore"
)

type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity the guard attached
// to the request, or nil for unguarded requests.
func IdentityFromContext(ctx context.Context) *authcore.Identity {
	identity, _ := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return identity
}

// Options tunes a Guard.
type Options struct {
	// RequiredRole rejects live sessions whose role does not match. Empty
	// accepts any role.
	RequiredRole string
	// RedirectTo, when set, answers denials with a 303 redirect instead of a
	// 401. Typical value: "/login".
	RedirectTo string
	// OnDenied overrides the denial response entirely. It must not reveal
	// why the request was rejected.
	OnDenied http.HandlerFunc
}

// Guard returns middleware that runs the engine's authentication gate on
// every request. Allowed requests proceed with the identity in their
// context; every rejection gets the same response regardless of reason.
// Storage outages are a 503, not a denial.
func Guard(engine *authcore.Engine, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := withProvenance(r)

			tokenStr, _ := engine.Carrier().Read(r)
			identity, err := engine.Authenticate(ctx, tokenStr)
			if err == nil {
				err = engine.RequireRole(ctx, identity, opts.RequiredRole)
			}
			if err != nil {
				deny(w, r, engine, opts, err)
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth is Guard with default options: any live session passes.
func RequireAuth(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, Options{})
}

// RequireRole is Guard restricted to one role.
func RequireRole(engine *authcore.Engine, role string) func(http.Handler) http.Handler {
	return Guard(engine, Options{RequiredRole: role})
}

func deny(w http.ResponseWriter, r *http.Request, engine *authcore.Engine, opts Options, err error) {
	var denial *authcore.Denial
	if !errors.As(err, &denial) {
		// Not a gate decision: the store could not answer.
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	// A dead session's cookie is useless; stop the client from resending it.
	engine.Carrier().Clear(w)

	if opts.OnDenied != nil {
		opts.OnDenied(w, r)
		return
	}
	if opts.RedirectTo != "" {
		http.Redirect(w, r, opts.RedirectTo, http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// withProvenance attaches the request's client IP and User-Agent to the
// context for session provenance and audit events.
func withProvenance(r *http.Request) context.Context {
	ctx := r.Context()
	ctx = authcore.WithClientIP(ctx, ClientIP(r))
	ctx = authcore.WithUserAgent(ctx, r.UserAgent())
	return ctx
}

// ClientIP resolves the address recorded as session provenance. Behind a
// reverse proxy RemoteAddr is the proxy, so the first X-Forwarded-For entry
// (the original client) wins when present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
