package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore is a Postgres-backed Store. Mutations of live records use
// conditional UPDATEs (WHERE is_active) so concurrent invalidation and
// refresh cannot interleave; records are kept forever for audit.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle. The caller owns the
// handle's lifecycle; call EnsureSchema before first use on a fresh
// database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the sessions table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT        NOT NULL,
	role        TEXT        NOT NULL,
	ip_address  TEXT        NOT NULL,
	user_agent  TEXT        NOT NULL,
	login_time  TIMESTAMPTZ NOT NULL,
	logout_time TIMESTAMPTZ,
	is_active   BOOLEAN     NOT NULL,
	expires_at  TIMESTAMPTZ,
	token       TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_subject_idx ON sessions (subject_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return storeErr(err)
	}
	return nil
}

const recordColumns = `id, subject_id, role, ip_address, user_agent,
	login_time, logout_time, is_active, expires_at, token, created_at, updated_at`

// Create persists a new record.
func (s *PostgresStore) Create(ctx context.Context, r *Record) error {
	const q = `INSERT INTO sessions (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.SubjectID, r.Role, r.IPAddress, r.UserAgent,
		r.LoginTime, nullTime(r.LogoutTime), r.IsActive, nullTime(r.ExpiresAt),
		r.Token, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Get fetches a record by ID without mutating it.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM sessions WHERE id = $1`
	return scanRecord(s.db.QueryRowContext(ctx, q, id))
}

// SetToken stores the last issued token string on the record.
func (s *PostgresStore) SetToken(ctx context.Context, id, token string) error {
	const q = `UPDATE sessions SET token = $2, updated_at = $3 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, q, id, token, time.Now())
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Update applies a partial mutation to a live record. The WHERE is_active
// guard makes the mutation race-free against concurrent invalidation.
func (s *PostgresStore) Update(ctx context.Context, id string, upd Update) (*Record, error) {
	const q = `UPDATE sessions SET
			expires_at = CASE WHEN $2 THEN $3 ELSE expires_at END,
			token      = CASE WHEN $4 THEN $5 ELSE token END,
			updated_at = $6
		WHERE id = $1 AND is_active
		RETURNING ` + recordColumns

	var (
		setExpiry bool
		expiresAt sql.NullTime
		setToken  bool
		token     string
	)
	if upd.ExpiresAt != nil {
		setExpiry = true
		expiresAt = sql.NullTime{Time: *upd.ExpiresAt, Valid: true}
	}
	if upd.Token != nil {
		setToken = true
		token = *upd.Token
	}

	r, err := scanRecord(s.db.QueryRowContext(ctx, q,
		id, setExpiry, expiresAt, setToken, token, time.Now()))
	if errors.Is(err, ErrNotFound) {
		// Zero rows: either the record is gone or it is inactive.
		existing, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if !existing.IsActive {
			return nil, ErrInactive
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Invalidate marks the record inactive and stamps LogoutTime once. The
// conditional UPDATE makes repeated calls a no-op.
func (s *PostgresStore) Invalidate(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE sessions
		SET is_active = false, logout_time = $2, updated_at = $2
		WHERE id = $1 AND is_active`

	res, err := s.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		// Already inactive is fine; missing entirely is not.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// InvalidateAllForSubject invalidates every active session of a subject.
func (s *PostgresStore) InvalidateAllForSubject(ctx context.Context, subjectID string, at time.Time) (int, error) {
	const q = `UPDATE sessions
		SET is_active = false, logout_time = $2, updated_at = $2
		WHERE subject_id = $1 AND is_active`

	res, err := s.db.ExecContext(ctx, q, subjectID, at)
	if err != nil {
		return 0, storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr(err)
	}
	return int(n), nil
}

// ActiveCountForSubject counts the subject's live sessions. Expired rows
// still flagged active do not count.
func (s *PostgresStore) ActiveCountForSubject(ctx context.Context, subjectID string) (int, error) {
	const q = `SELECT COUNT(*) FROM sessions
		WHERE subject_id = $1 AND is_active
		AND (expires_at IS NULL OR expires_at > $2)`

	var n int
	if err := s.db.QueryRowContext(ctx, q, subjectID, time.Now()).Scan(&n); err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r          Record
		logoutTime sql.NullTime
		expiresAt  sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.SubjectID, &r.Role, &r.IPAddress, &r.UserAgent,
		&r.LoginTime, &logoutTime, &r.IsActive, &expiresAt,
		&r.Token, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	if logoutTime.Valid {
		t := logoutTime.Time
		r.LogoutTime = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		r.ExpiresAt = &t
	}
	return &r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
