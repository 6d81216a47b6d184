// Package testutil starts throwaway postgres and S3 containers for
// integration tests. Containers and pools are released through t.Cleanup.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/witsync/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgvectorImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"

	pgCredential = "witsync"

	// RustFSAccessKey and RustFSSecretKey are the credentials of StartRustFS.
	RustFSAccessKey = "rustfsadmin"
	RustFSSecretKey = "rustfsadmin"
)

// tables are emptied by TruncateAll.
var tables = []string{"work_item_chunks", "sync_runs"}

// Postgres is a running pgvector container.
type Postgres struct {
	URL string
}

// RustFS is a running S3-compatible container.
type RustFS struct {
	Endpoint string
}

// StartPostgres starts a pgvector container. Schema is not applied; use
// NewTestPool or database.MigrateUp.
func StartPostgres(ctx context.Context, t *testing.T) *Postgres {
	t.Helper()

	container := start(ctx, t, testcontainers.ContainerRequest{
		Image:        pgvectorImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCredential,
			"POSTGRES_PASSWORD": pgCredential,
			"POSTGRES_DB":       pgCredential,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	})

	endpoint, err := container.PortEndpoint(ctx, "5432/tcp", "")
	require.NoError(t, err)

	return &Postgres{
		URL: fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgCredential, pgCredential, endpoint, pgCredential),
	}
}

// StartRustFS starts a RustFS container reachable with RustFSAccessKey.
func StartRustFS(ctx context.Context, t *testing.T) *RustFS {
	t.Helper()

	container := start(ctx, t, testcontainers.ContainerRequest{
		Image:        rustfsImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSAccessKey,
			"RUSTFS_SECRET_KEY": RustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "http")
	require.NoError(t, err)

	return &RustFS{Endpoint: endpoint}
}

// NewTestPool returns a pool on pg with the embedded migrations applied.
func NewTestPool(ctx context.Context, t *testing.T, pg *Postgres) *pgxpool.Pool {
	t.Helper()

	var (
		pool *pgxpool.Pool
		err  error
	)
	// The server may still be restarting after init when the port opens.
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = database.NewPool(ctx, database.Config{URL: pg.URL, MaxConns: 4})
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	require.NoError(t, err, "connect to postgres")
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, database.MigrateUp(pg.URL, logger), "apply migrations")

	return pool
}

// TruncateAll empties every table between subtests.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE"); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start %s", req.Image)
	return container
}
