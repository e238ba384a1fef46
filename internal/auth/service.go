package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultMaxAttempts = 5

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrAccountLocked      = errors.New("account temporarily locked")
)

type UserStore interface {
	GetByUsername(ctx context.Context, username string) (User, error)
	// Create persists a new user and seeds the default categories in the
	// same transaction; seeding failure rolls back the user insert.
	Create(ctx context.Context, username string, hashedPassword []byte) (User, error)
}

type AttemptStore interface {
	IncrementFailedAttempts(ctx context.Context, username string) (int64, error)
	LockAccount(ctx context.Context, username string) error
	IsAccountLocked(ctx context.Context, username string) (bool, error)
}

// Service orchestrates registration and login. All collaborators are
// injected; the service holds no mutable state of its own, so it is safe
// for concurrent request handlers.
type Service struct {
	users       UserStore
	attempts    AttemptStore
	hasher      *Hasher
	tokens      *TokenService
	maxAttempts int64
}

func NewService(users UserStore, attempts AttemptStore, hasher *Hasher, tokens *TokenService) *Service {
	return &Service{
		users:       users,
		attempts:    attempts,
		hasher:      hasher,
		tokens:      tokens,
		maxAttempts: defaultMaxAttempts,
	}
}

func (s *Service) WithMaxAttempts(maxAttempts int64) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
}

func (s *Service) Register(ctx context.Context, username, password string) (User, error) {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return User{}, ErrDuplicateUsername
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("look up username: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.users.Create(ctx, username, hashed)
}

// Login runs the per-attempt state machine: lock check, then credential
// verification, then either failure recording or token issuance.
//
// The lock check fires before the user lookup, so lockout applies even to
// usernames that were never registered. Unknown-user and wrong-password
// both surface as ErrInvalidCredentials so callers cannot enumerate
// usernames. A successful login does not reset the failure counter; the
// counter lapses on its own TTL.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	locked, err := s.attempts.IsAccountLocked(ctx, username)
	if err != nil {
		return "", err
	}
	if locked {
		return "", ErrAccountLocked
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("look up username: %w", err)
	}

	if errors.Is(err, sql.ErrNoRows) || !s.hasher.Verify(password, user.HashedPassword) {
		return "", s.recordFailure(ctx, username)
	}

	token, err := s.tokens.Issue(user.Username, user.ID)
	if err != nil {
		return "", err
	}

	return token, nil
}

// recordFailure increments the counter and arms the lock at the threshold.
// The attempt that crosses the threshold still reports invalid credentials;
// the lock takes effect on the next attempt.
func (s *Service) recordFailure(ctx context.Context, username string) error {
	count, err := s.attempts.IncrementFailedAttempts(ctx, username)
	if err != nil {
		return err
	}

	if count >= s.maxAttempts {
		if err := s.attempts.LockAccount(ctx, username); err != nil {
			return err
		}
	}

	return ErrInvalidCredentials
}
