// Package storetest provides a disposable postgres container for
// integration tests of any package built on internal/store, grounded on
// the teacher's testcontainers-go usage in registry/store/mongo.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/orbitflow/agentcore/internal/store"
	"github.com/orbitflow/agentcore/internal/wscontext"
)

// NewPool spins up a postgres container, applies every migration, and
// returns a *store.Pool for the duration of the test. Docker absence skips
// the test rather than failing the suite.
func NewPool(t *testing.T) *store.Pool {
	t.Helper()
	ctx := context.Background()

	var (
		container testcontainers.Container
		setupErr  error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				setupErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "agentcore",
				"POSTGRES_PASSWORD": "agentcore",
				"POSTGRES_DB":       "agentcore_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		}
		container, setupErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if setupErr != nil {
		t.Skipf("docker not available, skipping postgres-backed test: %v", setupErr)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Skipf("could not resolve container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Skipf("could not resolve container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://agentcore:agentcore@%s:%s/agentcore_test?sslmode=disable", host, port.Port())

	if err := store.ApplyMigrations(ctx, dsn); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	pool, err := store.Open(ctx, dsn, 4, 1, nil)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// WithScope returns a context carrying the given workspace/user scope, for
// tests that need store.RequireScope to succeed.
func WithScope(ctx context.Context, workspaceID, userID string) context.Context {
	return wscontext.With(ctx, wscontext.Scope{WorkspaceID: workspaceID, UserID: userID})
}
