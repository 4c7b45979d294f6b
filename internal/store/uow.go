package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting repositories
// accept either a pooled connection or an in-flight transaction without
// branching on the caller's intent.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type uowKey struct{}

// UnitOfWork wraps a pgx.Tx. Callers obtain one via WithUnitOfWork and pass
// the returned context through repository calls so cross-entity mutations
// (trigger + execution record, task + task_event) commit atomically.
// Per spec §4.1, the DB mutation and any engine-adapter call (Schedule
// Manager, workflow start) are deliberately kept OUTSIDE of this
// transaction — engines are not transactional participants.
type UnitOfWork struct {
	tx pgx.Tx
}

// WithUnitOfWork begins a transaction, runs fn with a context that carries
// it, and commits on success or rolls back on any returned error (including
// a panic, which is re-raised after rollback).
func WithUnitOfWork(ctx context.Context, pool *Pool, fn func(ctx context.Context) error) (err error) {
	tx, err := pool.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	txCtx := context.WithValue(ctx, uowKey{}, &UnitOfWork{tx: tx})
	if err = fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// QuerierFrom returns the transaction bound to ctx if present, otherwise
// falls back to the pool itself (auto-commit per statement).
func QuerierFrom(ctx context.Context, pool *Pool) Querier {
	if v := ctx.Value(uowKey{}); v != nil {
		if uow, ok := v.(*UnitOfWork); ok {
			return uow.tx
		}
	}
	return pool.pool
}
