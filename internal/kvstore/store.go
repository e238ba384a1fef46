// Package kvstore is a Postgres-backed key-value store with per-key expiry,
// used as the counter/lockout store for login protection. Expired entries are
// invisible to reads and reclaimed in batches by the maintenance endpoint.
package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Increment atomically increments the counter stored under key and returns
// the new value. The expiry is anchored at the first increment of a window:
// a live entry keeps its original expires_at, while an expired (or absent)
// entry restarts at 1 with a fresh expiry of now+ttl. Concurrent increments
// of the same key serialize on the row lock.
func (s *Store) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin increment: %w", err)
	}
	defer tx.Rollback()

	// Seed an already-lapsed row so the locking read below always finds
	// one; an existing row, live or not, is left untouched.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO auth_kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, now)
	if err != nil {
		return 0, fmt.Errorf("seed key: %w", err)
	}

	var (
		value     int64
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT value, expires_at
		FROM auth_kv_entries
		WHERE key = $1
		FOR UPDATE
	`, key).Scan(&value, &expiresAt)
	if err != nil {
		return 0, fmt.Errorf("read key: %w", err)
	}

	next, windowEnd := advanceWindow(value, expiresAt, now, ttl)

	_, err = tx.ExecContext(ctx, `
		UPDATE auth_kv_entries
		SET value = $2, expires_at = $3, updated_at = $4
		WHERE key = $1
	`, key, next, windowEnd, now)
	if err != nil {
		return 0, fmt.Errorf("increment key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit increment: %w", err)
	}

	return next, nil
}

// advanceWindow applies a single increment to a counter window. A live window
// advances the counter and keeps its original expiry; an absent or lapsed one
// restarts the counter at 1 with the window anchored at now.
func advanceWindow(value int64, expiresAt, now time.Time, ttl time.Duration) (int64, time.Time) {
	if value <= 0 || !expiresAt.After(now) {
		return 1, now.Add(ttl)
	}
	return value + 1, expiresAt
}

// SetWithTTL writes a marker entry under key, unconditionally overwriting any
// existing value and expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, ttl time.Duration) error {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = 1, expires_at = $2, updated_at = $3
	`, key, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("set key: %w", err)
	}

	return nil
}

// Exists reports whether key holds a live (unexpired) entry.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM auth_kv_entries
			WHERE key = $1 AND expires_at > $2
		)
	`, key, time.Now().UTC()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check key: %w", err)
	}

	return exists, nil
}

// PurgeExpired deletes up to batchSize expired entries and returns how many
// rows were removed.
func (s *Store) PurgeExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := s.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT key
			FROM auth_kv_entries
			WHERE expires_at <= $1
			ORDER BY expires_at ASC
			LIMIT $2
		)
		DELETE FROM auth_kv_entries t
		USING stale
		WHERE t.key = stale.key
	`, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("purge expired keys: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired keys rows affected: %w", err)
	}

	return affected, nil
}
