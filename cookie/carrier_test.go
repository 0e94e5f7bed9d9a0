package cookie

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteRead(t *testing.T) {
	carrier, err := New("__session", false)
	if err != nil {
		t.Fatalf("new carrier: %v", err)
	}

	rec := httptest.NewRecorder()
	carrier.Write(rec, "signed-token", 3600)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != "__session" || ck.Value != "signed-token" {
		t.Errorf("cookie = %s=%s", ck.Name, ck.Value)
	}
	if !ck.HttpOnly {
		t.Error("cookie not HttpOnly")
	}
	if ck.Path != "/" {
		t.Errorf("path = %q, want /", ck.Path)
	}
	if ck.SameSite != http.SameSiteLaxMode {
		t.Errorf("samesite = %v, want Lax", ck.SameSite)
	}
	if ck.MaxAge != 3600 {
		t.Errorf("max-age = %d, want 3600", ck.MaxAge)
	}
	if ck.Secure {
		t.Error("secure set despite secure=false")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	token, err := carrier.Read(req)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if token != "signed-token" {
		t.Errorf("token = %q", token)
	}
}

func TestSecureFlag(t *testing.T) {
	carrier, _ := New("__session", true)

	rec := httptest.NewRecorder()
	carrier.Write(rec, "tok", 60)

	if !rec.Result().Cookies()[0].Secure {
		t.Error("secure flag not set")
	}
}

func TestSessionCookieWithoutMaxAge(t *testing.T) {
	carrier, _ := New("__session", false)

	rec := httptest.NewRecorder()
	carrier.Write(rec, "tok", 0)

	ck := rec.Result().Cookies()[0]
	if ck.MaxAge != 0 {
		t.Errorf("max-age = %d, want 0 (browser-session cookie)", ck.MaxAge)
	}
}

func TestReadMissing(t *testing.T) {
	carrier, _ := New("__session", false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := carrier.Read(req); !errors.Is(err, ErrNoToken) {
		t.Fatalf("read without cookie = %v, want ErrNoToken", err)
	}

	req.AddCookie(&http.Cookie{Name: "__session", Value: ""})
	if _, err := carrier.Read(req); !errors.Is(err, ErrNoToken) {
		t.Fatalf("read empty cookie = %v, want ErrNoToken", err)
	}
}

func TestClear(t *testing.T) {
	carrier, _ := New("__session", false)

	rec := httptest.NewRecorder()
	carrier.Clear(rec)

	ck := rec.Result().Cookies()[0]
	if ck.Value != "" {
		t.Errorf("cleared cookie has value %q", ck.Value)
	}
	if ck.MaxAge >= 0 {
		t.Errorf("cleared cookie max-age = %d, want negative", ck.MaxAge)
	}
}

func TestNewRejectsEmptyName(t *testing.T) {
	if _, err := New("", false); err == nil {
		t.Fatal("accepted empty cookie name")
	}
}
