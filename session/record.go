package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Provenance is client metadata captured once at session creation, for
// audit only. It is never consulted for authorization decisions.
type Provenance struct {
	IPAddress string
	UserAgent string
}

// Record is the durable trace of one login.
//
// Invariants:
//   - ID is server-generated, unique, and immutable.
//   - IsActive == false implies LogoutTime != nil.
//   - A Record whose ExpiresAt has passed is never live, even while
//     IsActive still reads true (expiry is detected lazily at read time).
//   - At most one token string is valid per Record at a time; Token holds
//     the last one issued.
type Record struct {
	ID        string
	SubjectID string
	Role      string

	IPAddress string
	UserAgent string

	LoginTime  time.Time
	LogoutTime *time.Time
	IsActive   bool
	ExpiresAt  *time.Time

	// Token is the last signed token string issued for this record. The
	// gate compares presented tokens against it to reject replays of
	// cryptographically valid but superseded tokens.
	Token string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord allocates a validated active record. lifetime <= 0 produces a
// record with no automatic expiry.
func NewRecord(subjectID, role string, prov Provenance, lifetime time.Duration, now time.Time) (*Record, error) {
	if subjectID == "" {
		return nil, errors.New("session subject must be set")
	}
	if role == "" {
		return nil, errors.New("session role must be set")
	}

	if prov.IPAddress == "" {
		prov.IPAddress = "unknown"
	}
	if prov.UserAgent == "" {
		prov.UserAgent = "unknown"
	}

	r := &Record{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Role:      role,
		IPAddress: prov.IPAddress,
		UserAgent: prov.UserAgent,
		LoginTime: now,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if lifetime > 0 {
		expiresAt := now.Add(lifetime)
		r.ExpiresAt = &expiresAt
	}

	return r, nil
}

// IsLive reports whether the record still authenticates requests:
// active and not past its deadline.
func (r *Record) IsLive(now time.Time) bool {
	if r == nil || !r.IsActive {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Update is a partial mutation applied by Store.Update. ID and SubjectID
// are not representable here on purpose: they are immutable.
type Update struct {
	ExpiresAt *time.Time
	Token     *string
}
