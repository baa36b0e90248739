package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns a migrated database for integration tests: a shared one from
// DATABASE_URL (isolated in its own schema) or a throwaway container.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	teardown  func(context.Context) error
}

// NewHarness skips t when neither DATABASE_URL nor a Docker daemon is
// available.
func NewHarness(ctx context.Context, t testing.TB) *Harness {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	shared := dsn != ""
	container := &PGContainer{}
	if !shared {
		if !DockerAvailable(ctx) {
			t.Skip("DATABASE_URL is empty and docker is unavailable; skipping integration test")
		}
		var err error
		container, err = StartPostgres(ctx, PostgresOptions{})
		if err != nil {
			t.Fatalf("start postgres: %v", err)
		}
		dsn = container.DSN
	}

	pool, teardown, err := ApplyMigrations(ctx, dsn, shared)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("apply migrations: %v", err)
	}

	h := &Harness{container: container, pool: pool, teardown: teardown}
	t.Cleanup(h.Close)
	return h
}

func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

func (h *Harness) Close() {
	ctx := context.Background()
	if h.pool != nil {
		h.pool.Close()
	}
	if h.teardown != nil {
		_ = h.teardown(ctx)
	}
	_ = h.container.Terminate(ctx)
}

// Reset truncates every table so each test starts from an empty schema.
// TRUNCATE bypasses the row-level audit_logs guard.
func (h *Harness) Reset(ctx context.Context) error {
	const q = `TRUNCATE outbox, audit_logs, dispute_resolutions, disputes, contracts, users`
	if _, err := h.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("infra: reset: %w", err)
	}
	return nil
}

// DockerAvailable reports whether a reachable Docker daemon exists.
func DockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
