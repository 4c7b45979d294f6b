// Package store implements the Workspace-Scoped Store (spec §4.1, component
// C1): typed repositories that automatically inject tenant scope and audit
// fields, and transactional units of work. The pgxpool setup is grounded on
// compozy-compozy's engine/infra/postgres.Store; the generic
// Get/List/Create/Update/Delete contract is the platform's own, sized to the
// three primary tables (triggers, trigger_executions folded into the trigger
// schema; tasks; task_events) described in spec §6.3.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitflow/agentcore/internal/telemetry"
)

// Pool wraps a pgxpool.Pool. It intentionally does not leak pgx types
// through repository public APIs beyond this package boundary.
type Pool struct {
	pool *pgxpool.Pool
	log  telemetry.Logger
}

// Open initializes the pgx pool and performs a health check.
func Open(ctx context.Context, dsn string, maxConns, minConns int, log telemetry.Logger) (*Pool, error) {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		cfg.MinConns = int32(minConns)
	}
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	log.Info(ctx, "store initialized", "driver", "postgres")
	return &Pool{pool: pool, log: log}, nil
}

// Close releases the pool.
func (p *Pool) Close() {
	p.pool.Close()
}

// Raw exposes the underlying pgxpool.Pool for migration/diagnostic tooling
// only; repositories should go through Querier instead.
func (p *Pool) Raw() *pgxpool.Pool { return p.pool }

// HealthCheck verifies the connection is alive.
func (p *Pool) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.pool.Ping(hctx); err != nil {
		return fmt.Errorf("store: health check: %w", err)
	}
	return nil
}
