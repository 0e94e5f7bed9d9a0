package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound: no record exists for the session ID. Distinct from
	// ErrStoreUnavailable — "no session" is not "cannot tell".
	ErrNotFound = errors.New("session not found")
	// ErrInactive: the record exists but has been invalidated.
	ErrInactive = errors.New("session inactive")
	// ErrConflict: a concurrent mutation won the per-record compare-and-set.
	ErrConflict = errors.New("session update conflict")
	// ErrStoreUnavailable wraps every backing-storage failure.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Store persists session records. Implementations must make each mutation
// atomic per record: a concurrent refresh and invalidate on the same ID may
// not interleave into a state like IsActive=true with LogoutTime set.
type Store interface {
	// Create persists a new record. The record's token is attached
	// afterwards via SetToken (the create sequence's second write).
	Create(ctx context.Context, r *Record) error

	// Get returns the record regardless of liveness; deciding what a
	// non-live record means is the caller's job.
	Get(ctx context.Context, id string) (*Record, error)

	// SetToken stores the last issued token string on the record.
	SetToken(ctx context.Context, id, token string) error

	// Update applies a partial mutation to a live record and returns the
	// updated state. Inactive records yield ErrInactive.
	Update(ctx context.Context, id string, upd Update) (*Record, error)

	// Invalidate marks the record inactive and stamps LogoutTime exactly
	// once. Invalidating an already-inactive record is a no-op success.
	Invalidate(ctx context.Context, id string, at time.Time) error

	// InvalidateAllForSubject invalidates every active session of a subject
	// and returns how many were affected.
	InvalidateAllForSubject(ctx context.Context, subjectID string, at time.Time) (int, error)

	// ActiveCountForSubject counts the subject's live sessions.
	ActiveCountForSubject(ctx context.Context, subjectID string) (int, error)
}
