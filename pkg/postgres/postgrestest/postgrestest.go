//go:build integration

// Package postgrestest starts a throwaway Postgres with the service schema for
// repository tests. Run with: go test -tags integration ./...
package postgrestest

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func migration() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations", "001_inventory.up.sql")
}

// Start runs a Postgres container with the migrations applied and returns a
// connection that is closed, along with the container, when t ends.
func Start(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("funeral_inventory_test"),
		tcPostgres.WithUsername("funeral"),
		tcPostgres.WithPassword("funeral"),
		tcPostgres.WithInitScripts(migration()),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
