package authcore

import "context"

// Role tags fixed at session creation. Additional roles may be used freely;
// these two are the ones the Seminaria application ships with.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// UserRecord is the credential view the engine consumes from the
// user-account store. The password hash never travels further than the
// credential verifier.
type UserRecord struct {
	SubjectID    string
	Email        string
	PasswordHash string
	Role         string
}

// UserProvider is the boundary to the external user-account storage.
//
// FindByEmail must return [ErrUserNotFound] when no account matches.
// CreateUser must return [ErrUserExists] for a duplicate email.
type UserProvider interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	CreateUser(ctx context.Context, email, passwordHash, role string) (*UserRecord, error)
	UpdatePasswordHash(ctx context.Context, subjectID, passwordHash string) error
}

// Identity is the authenticated principal attached to a request after the
// gate allows it.
type Identity struct {
	SubjectID string
	Role      string
	SessionID string
}
