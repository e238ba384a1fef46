package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Categories every new account starts with.
var defaultCategories = []string{
	"Food",
	"Transport",
	"Housing",
	"Entertainment",
	"Health",
	"Salary",
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, hashed_password, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.HashedPassword, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("query user by username: %w", err)
	}

	return user, nil
}

// Create inserts the user and seeds the default categories in one
// transaction. A concurrent registration of the same username surfaces as
// ErrDuplicateUsername via the unique constraint.
func (r *Repository) Create(ctx context.Context, username string, hashedPassword []byte) (User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("begin register tx: %w", err)
	}
	defer tx.Rollback()

	var user User
	user.Username = username
	user.HashedPassword = hashedPassword
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (username, hashed_password)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, username, hashedPassword).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateUsername
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	for _, name := range defaultCategories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (user_id, name)
			VALUES ($1, $2)
		`, user.ID, name); err != nil {
			return User{}, fmt.Errorf("seed category %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("commit register tx: %w", err)
	}

	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
