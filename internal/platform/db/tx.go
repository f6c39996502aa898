package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxFromContext retrieves an open transaction from context, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the pool and returns a derived context that
// repositories will route their queries through. The caller owns commit and
// rollback.
func WithTx(ctx context.Context, pool *pgxpool.Pool) (context.Context, pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// Runner executes a function inside a single database transaction. The
// administration recorder depends on this interface rather than the pool so
// service tests can substitute a serialized in-memory runner.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type poolRunner struct {
	pool *pgxpool.Pool
}

// NewRunner returns a Runner backed by the connection pool.
func NewRunner(pool *pgxpool.Pool) Runner {
	return &poolRunner{pool: pool}
}

// InTx runs fn inside a transaction. fn sees a context carrying the open
// transaction, so every repository call inside it joins the same transaction;
// any error rolls the whole unit back. A call made from inside a transaction
// joins it instead of opening a nested one.
func (r *poolRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	txCtx, tx, err := WithTx(ctx, r.pool)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
