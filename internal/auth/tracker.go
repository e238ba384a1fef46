package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable wraps counter store failures. Lockout checks fail
// closed: if the store cannot answer, login is denied with this error.
var ErrStoreUnavailable = errors.New("attempt store unavailable")

const (
	attemptKeyPrefix = "failed_attempts:"
	lockKeyPrefix    = "locked:"

	// The counter window is anchored at the first failure; later failures
	// do not extend it. The lock expires on its own, there is no explicit
	// unlock.
	attemptWindow = 5 * time.Minute
	lockDuration  = 5 * time.Minute
)

type counterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	SetWithTTL(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// AttemptTracker records failed login attempts per username and maintains
// the lockout flag. The counter and the lock live under independent keys
// with independent expiry; they are not transactionally linked.
type AttemptTracker struct {
	store counterStore
}

func NewAttemptTracker(store counterStore) *AttemptTracker {
	return &AttemptTracker{store: store}
}

func (t *AttemptTracker) IncrementFailedAttempts(ctx context.Context, username string) (int64, error) {
	count, err := t.store.Increment(ctx, attemptKeyPrefix+username, attemptWindow)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	return count, nil
}

func (t *AttemptTracker) LockAccount(ctx context.Context, username string) error {
	if err := t.store.SetWithTTL(ctx, lockKeyPrefix+username, lockDuration); err != nil {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	return nil
}

func (t *AttemptTracker) IsAccountLocked(ctx context.Context, username string) (bool, error) {
	locked, err := t.store.Exists(ctx, lockKeyPrefix+username)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	return locked, nil
}
