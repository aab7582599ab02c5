package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])
	assert.IsIncreasing(t, names)
}

func TestQueryName(t *testing.T) {
	tests := map[string]string{
		"":                                "unknown",
		"SELECT 1":                        "SELECT",
		"\n\t  insert into questions ...": "INSERT",
		"WITH q AS (UPDATE ...) SELECT":   "WITH",
		"begin":                           "other",
	}
	for sql, want := range tests {
		assert.Equal(t, want, queryName(sql), sql)
	}
}

func TestMigrate_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_TEST_URL")
	if testing.Short() || dsn == "" {
		t.Skip("skipping integration test: DATABASE_TEST_URL not set")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	pool, err := NewPostgresPool(ctx, dsn, logger)
	require.NoError(t, err)
	defer pool.Close()

	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- Migrate(ctx, pool, logger) }()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs, "concurrent runs are serialized")
	require.NoError(t, Migrate(ctx, pool, logger), "migrations are idempotent")

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.GreaterOrEqual(t, n, 1)
}
