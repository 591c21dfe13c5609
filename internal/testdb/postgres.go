// Package testdb starts a migrated Postgres container for repository tests.
package testdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/connect-event/backend/pkg/database"
)

// Start runs postgres:16-alpine, applies the embedded migrations and returns a pool.
// The test is skipped with -short. Container and pool are released on cleanup.
func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("connect"),
		postgres.WithUsername("connect"),
		postgres.WithPassword("connect"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(dsn, nil))

	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 20}, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// Participant inserts a participant and returns its id.
func Participant(t *testing.T, pool *pgxpool.Pool, name, role string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	email := fmt.Sprintf("%s@example.com", uuid.NewString())
	err := pool.QueryRow(context.Background(),
		`INSERT INTO participants (email, password_hash, full_name, role) VALUES ($1, 'x', $2, $3) RETURNING id`,
		email, name, role).Scan(&id)
	require.NoError(t, err)
	return id
}

// Talk inserts a talk without slots or window override and returns its id.
func Talk(t *testing.T, pool *pgxpool.Pool, title string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `INSERT INTO talks (title) VALUES ($1) RETURNING id`, title).Scan(&id)
	require.NoError(t, err)
	return id
}
