//go:build integration

package dbtest

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/example/learnstats/internal/config"
	"github.com/example/learnstats/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// SkipIfNoDocker skips the test when no docker daemon answers
func SkipIfNoDocker(t testing.TB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// NewPostgres starts a throwaway postgres container and returns a pooled,
// migrated connection to it
func NewPostgres(t testing.TB) *sqlx.DB {
	t.Helper()
	SkipIfNoDocker(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("learnstats"),
		postgres.WithUsername("learnstats"),
		postgres.WithPassword("learnstats"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Connect(ctx, config.DatabaseConfig{Type: "postgres", URL: dsn, MaxOpenConns: 20})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
