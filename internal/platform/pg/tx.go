package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txKey binds the current pgx.Tx to a context.
type txKey struct{}

// Querier is the query surface shared by the pool and a transaction.
// Stores depend on it so the same code runs inside and outside WithinTx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// TxRunner runs callbacks inside pgx transactions. The transaction
// travels in the context, so repositories never pass it explicitly.
type TxRunner struct {
	Pool *pgxpool.Pool
}

// NewTxRunner creates a TxRunner for pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{Pool: pool}
}

// WithinTx runs fn in a transaction that commits when fn returns nil.
// Inside fn the transaction is available through GetQuerier(ctx).
// Nested calls join the outer transaction instead of opening a new one.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Already inside a transaction.
	if _, ok := PgxTx(ctx); ok {
		return fn(ctx)
	}
	// BeginFunc rolls back on error or panic and commits otherwise.
	return pgx.BeginFunc(ctx, r.Pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// WithinLockedTx runs fn in a transaction holding the advisory lock for key.
// The lock is released at commit or rollback. The quota limiter uses it to
// serialize the count-then-insert of one user's reservations.
func (r *TxRunner) WithinLockedTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return r.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.GetQuerier(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// PgxTx returns the transaction bound to ctx.
func PgxTx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// GetQuerier returns the transaction bound to ctx, or the pool.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if tx, ok := PgxTx(ctx); ok {
		return tx
	}
	return r.Pool
}
