// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nucleus/pm-sync/internal/database"
)

// PostgresDSNEnv names the variable that enables PostgreSQL tests.
const PostgresDSNEnv = "PMSYNC_TEST_POSTGRES_DSN"

// New opens a migrated SQLite database in a temp directory. It is closed
// when the test ends.
func New(t testing.TB, opts ...database.Option) *database.Client {
	t.Helper()
	cfg := database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "pm-sync.db"),
	}
	return open(t, cfg, opts...)
}

// NewPostgres opens and migrates the database named by
// PMSYNC_TEST_POSTGRES_DSN, skipping the test when it is unset.
func NewPostgres(t testing.TB, driver string, opts ...database.Option) *database.Client {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	return open(t, database.Config{Driver: driver, DSN: dsn}, opts...)
}

func open(t testing.TB, cfg database.Config, opts ...database.Option) *database.Client {
	t.Helper()
	client, err := database.NewClient(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}
