package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
)

// Register creates a user account with a hashed credential. The plaintext
// password never reaches the user provider. Registration does not log the
// user in; callers chain a Login when they want that behavior.
func (e *Engine) Register(ctx context.Context, email, password, role string) (*UserRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email address: %w", err)
	}
	if role == "" {
		role = RoleUser
	}

	hash, err := e.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := e.users.CreateUser(ctx, email, hash, role)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			e.emitAudit(ctx, auditRegisterFailed, "", "", false, ErrUserExists)
		}
		return nil, err
	}

	e.metrics.inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditRegistered, user.SubjectID, "", true, nil)
	return user, nil
}

// ResetPassword replaces a subject's credential and revokes every session
// they hold. The revocation is not optional: a password reset that leaves
// old sessions alive defeats its purpose.
func (e *Engine) ResetPassword(ctx context.Context, subjectID, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.users.UpdatePasswordHash(ctx, subjectID, hash); err != nil {
		return err
	}

	if _, err := e.LogoutAll(ctx, subjectID); err != nil {
		return fmt.Errorf("password updated but session revocation failed: %w", err)
	}

	e.metrics.inc(MetricPasswordReset)
	e.emitAudit(ctx, auditPasswordReset, subjectID, "", true, nil)
	return nil
}
