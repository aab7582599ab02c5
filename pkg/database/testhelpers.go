package database

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"
)

// TestPool returns a migrated pool for DATABASE_TEST_URL, skipping the test when it is unset.
func TestPool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_TEST_URL")
	if testing.Short() || dsn == "" {
		t.Skip("skipping integration test: DATABASE_TEST_URL not set")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	pool, err := NewPostgresPool(ctx, dsn, logger)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(ctx, pool, logger); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return pool
}
