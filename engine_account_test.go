package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestRegister(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	user, err := engine.Register(ctx, "alice@example.com", "some-password", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleUser {
		t.Errorf("role = %q, want default %q", user.Role, RoleUser)
	}
	if user.PasswordHash == "some-password" {
		t.Fatal("password stored in plaintext")
	}

	// Registration does not create a session.
	if got := engine.Metrics().Get(MetricSessionCreated); got != 0 {
		t.Errorf("sessions created by register: %d", got)
	}

	if _, err := engine.Login(ctx, "alice@example.com", "some-password"); err != nil {
		t.Fatalf("login after register: %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Register(ctx, "alice@example.com", "some-password", RoleUser); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := engine.Register(ctx, "alice@example.com", "other-password", RoleUser); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate = %v, want ErrUserExists", err)
	}
	if _, err := engine.Register(ctx, "not-an-email", "some-password", RoleUser); err == nil {
		t.Error("accepted invalid email")
	}
	if _, err := engine.Register(ctx, "bob@example.com", "short", RoleUser); err == nil {
		t.Error("accepted too-short password")
	}
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, "alice@example.com", "old-password-1", RoleUser)

	login, err := engine.Login(ctx, "alice@example.com", "old-password-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := engine.ResetPassword(ctx, user.SubjectID, "new-password-1"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	// The pre-reset session is dead.
	if _, err := engine.Authenticate(ctx, login.Token); err == nil {
		t.Fatal("session survived a password reset")
	}

	// Old credential fails, new one works.
	if _, err := engine.Login(ctx, "alice@example.com", "old-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "new-password-1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}
