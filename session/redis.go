package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const casAttempts = 4

// RedisStore is a Redis-backed Store. Records are kept readable for a
// retention window after invalidation or expiry so that lazy-expiry
// bookkeeping (logout time) stays observable.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore creates a Store backed by the given Redis client. prefix
// namespaces all keys; retention controls how long dead records linger
// (<= 0 defaults to 24 hours).
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "sess"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisStore) subjectKey(subjectID string) string {
	return s.prefix + ":sub:" + subjectID
}

func (s *RedisStore) ttl(r *Record, now time.Time) time.Duration {
	if !r.IsActive {
		return s.retention
	}
	if r.ExpiresAt == nil {
		return 0
	}
	d := r.ExpiresAt.Sub(now) + s.retention
	if d <= 0 {
		return s.retention
	}
	return d
}

// Create persists a new record and indexes it under its subject.
func (s *RedisStore) Create(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(r.ID), data, s.ttl(r, r.CreatedAt))
		pipe.SAdd(ctx, s.subjectKey(r.SubjectID), r.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Get fetches a record by ID without mutating it.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return decode(data)
}

// SetToken stores the last issued token string on the record.
func (s *RedisStore) SetToken(ctx context.Context, id, token string) error {
	_, err := s.mutate(ctx, id, func(r *Record, now time.Time) (bool, error) {
		r.Token = token
		r.UpdatedAt = now
		return true, nil
	})
	return err
}

// Update applies a partial mutation to a live record via optimistic CAS.
func (s *RedisStore) Update(ctx context.Context, id string, upd Update) (*Record, error) {
	return s.mutate(ctx, id, func(r *Record, now time.Time) (bool, error) {
		if !r.IsActive {
			return false, ErrInactive
		}
		if upd.ExpiresAt != nil {
			expiresAt := *upd.ExpiresAt
			r.ExpiresAt = &expiresAt
		}
		if upd.Token != nil {
			r.Token = *upd.Token
		}
		r.UpdatedAt = now
		return true, nil
	})
}

// Invalidate marks the record inactive. Already-inactive records are left
// untouched: the first LogoutTime stamp wins.
func (s *RedisStore) Invalidate(ctx context.Context, id string, at time.Time) error {
	_, err := s.invalidate(ctx, id, at)
	return err
}

func (s *RedisStore) invalidate(ctx context.Context, id string, at time.Time) (bool, error) {
	changed := false
	_, err := s.mutate(ctx, id, func(r *Record, _ time.Time) (bool, error) {
		if !r.IsActive {
			return false, nil
		}
		logoutTime := at
		r.IsActive = false
		r.LogoutTime = &logoutTime
		r.UpdatedAt = at
		changed = true
		return true, nil
	})
	return changed, err
}

// InvalidateAllForSubject invalidates every tracked session of a subject.
func (s *RedisStore) InvalidateAllForSubject(ctx context.Context, subjectID string, at time.Time) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	count := 0
	for _, id := range ids {
		changed, err := s.invalidate(ctx, id, at)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return count, err
		}
		if changed {
			count++
		}
	}

	return count, nil
}

// ActiveCountForSubject counts live sessions and prunes dead index entries
// as a side effect.
func (s *RedisStore) ActiveCountForSubject(ctx context.Context, subjectID string) (int, error) {
	subjectKey := s.subjectKey(subjectID)

	ids, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	count := 0
	var stale []interface{}
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return 0, err
		}
		if r.IsLive(now) {
			count++
		} else {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		// Pruning is best-effort; the count is already correct.
		_ = s.redis.SRem(ctx, subjectKey, stale...).Err()
	}

	return count, nil
}

// mutate runs a read-modify-write cycle under WATCH so concurrent mutations
// of the same record cannot interleave. Retries a bounded number of times,
// then reports ErrConflict.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(r *Record, now time.Time) (bool, error)) (*Record, error) {
	key := s.key(id)

	var out *Record
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		r, err := decode(data)
		if err != nil {
			return err
		}

		now := time.Now()
		write, err := fn(r, now)
		if err != nil {
			return err
		}
		out = r
		if !write {
			return nil
		}

		encoded, err := json.Marshal(r)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl(r, now))
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	for i := 0; i < casAttempts; i++ {
		err := s.redis.Watch(ctx, txn, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, ErrConflict
}

func decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: corrupt session record: %v", ErrStoreUnavailable, err)
	}
	return &r, nil
}
