//go:build integration

package kvstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fintrack/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fintrack_test"),
		postgres.WithUsername("fintrack"),
		postgres.WithPassword("fintrack"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	database, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.RunMigrations(ctx, database))

	return New(database)
}

func readExpiry(t *testing.T, store *Store, key string) time.Time {
	t.Helper()

	var expiresAt time.Time
	err := store.db.QueryRow(`SELECT expires_at FROM auth_kv_entries WHERE key = $1`, key).Scan(&expiresAt)
	require.NoError(t, err)
	return expiresAt
}

func TestIncrementAnchorsWindowAtFirstFailure(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.Increment(ctx, "failed_attempts:alice", time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, first)

	windowEnd := readExpiry(t, store, "failed_attempts:alice")

	second, err := store.Increment(ctx, "failed_attempts:alice", time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 2, second)

	require.True(t, readExpiry(t, store, "failed_attempts:alice").Equal(windowEnd),
		"a live window must keep the expiry set by the first increment")
}

func TestIncrementRestartsLapsedWindow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	const ttl = 100 * time.Millisecond

	for want := int64(1); want <= 2; want++ {
		value, err := store.Increment(ctx, "failed_attempts:bob", ttl)
		require.NoError(t, err)
		require.Equal(t, want, value)
	}
	windowEnd := readExpiry(t, store, "failed_attempts:bob")

	time.Sleep(ttl + 50*time.Millisecond)

	value, err := store.Increment(ctx, "failed_attempts:bob", ttl)
	require.NoError(t, err)
	require.EqualValues(t, 1, value, "an expired counter restarts instead of resuming")
	require.True(t, readExpiry(t, store, "failed_attempts:bob").After(windowEnd))
}

func TestIncrementTracksKeysIndependently(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		value, err := store.Increment(ctx, "failed_attempts:carol", time.Hour)
		require.NoError(t, err)
		require.Equal(t, want, value)
	}

	value, err := store.Increment(ctx, "failed_attempts:dave", time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, value)
}

func TestExistsIgnoresExpiredEntries(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "locked:alice", 100*time.Millisecond))

	exists, err := store.Exists(ctx, "locked:alice")
	require.NoError(t, err)
	require.True(t, exists)

	time.Sleep(150 * time.Millisecond)

	exists, err = store.Exists(ctx, "locked:alice")
	require.NoError(t, err)
	require.False(t, exists, "an expired entry reads as absent")

	exists, err = store.Exists(ctx, "locked:never-set")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSetWithTTLOverwritesExistingEntry(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "locked:bob", 100*time.Millisecond))
	require.NoError(t, store.SetWithTTL(ctx, "locked:bob", time.Hour))

	time.Sleep(150 * time.Millisecond)

	exists, err := store.Exists(ctx, "locked:bob")
	require.NoError(t, err)
	require.True(t, exists, "the rewrite extends the expiry")
}

func TestPurgeExpiredRemovesOnlyLapsedEntries(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "locked:stale", 50*time.Millisecond))
	require.NoError(t, store.SetWithTTL(ctx, "locked:fresh", time.Hour))

	time.Sleep(100 * time.Millisecond)

	removed, err := store.PurgeExpired(ctx, 500)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	exists, err := store.Exists(ctx, "locked:fresh")
	require.NoError(t, err)
	require.True(t, exists)

	var remaining int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM auth_kv_entries`).Scan(&remaining))
	require.Equal(t, 1, remaining)
}
