package cookie

import (
	"errors"
	"net/http"
)

// ErrNoToken is returned by Read when the request carries no session
// cookie. Callers treat it as "anonymous request", not as a failure.
var ErrNoToken = errors.New("no session cookie")

// Carrier moves the raw token string between HTTP responses and requests
// via a single cookie. The cookie is always HttpOnly, scoped to the whole
// site, and SameSite=Lax; only the name and the Secure flag vary.
type Carrier struct {
	name   string
	secure bool
}

// New builds a carrier for the named cookie. secure should be true
// everywhere except local development over plain HTTP.
func New(name string, secure bool) (*Carrier, error) {
	if name == "" {
		return nil, errors.New("cookie name must be set")
	}
	return &Carrier{name: name, secure: secure}, nil
}

// Name returns the cookie name the carrier reads and writes.
func (c *Carrier) Name() string { return c.name }

// Read extracts the token from the request. An absent or empty cookie is
// ErrNoToken; the value is returned verbatim, with no validation.
func (c *Carrier) Read(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.name)
	if err != nil || ck.Value == "" {
		return "", ErrNoToken
	}
	return ck.Value, nil
}

// Write attaches the token to the response. maxAge is the cookie lifetime
// in seconds; maxAge <= 0 writes a session cookie that lives until the
// browser closes.
func (c *Carrier) Write(w http.ResponseWriter, token string, maxAge int) {
	ck := c.base()
	ck.Value = token
	if maxAge > 0 {
		ck.MaxAge = maxAge
	}
	http.SetCookie(w, ck)
}

// Clear instructs the client to drop the cookie immediately.
func (c *Carrier) Clear(w http.ResponseWriter) {
	ck := c.base()
	ck.MaxAge = -1
	http.SetCookie(w, ck)
}

func (c *Carrier) base() *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
