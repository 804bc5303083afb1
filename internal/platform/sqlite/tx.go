package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// txKey binds the current *sql.Tx or pinned *sql.Conn to a context.
type txKey struct{}

// Querier is the query surface shared by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
	_ Querier = (*sql.Conn)(nil)
)

// ErrNestedTx is returned when a transaction is started inside another one.
var ErrNestedTx = errors.New("sqlite: nested transactions are not supported")

// TxRunner runs callbacks inside transactions and retries them when the
// database reports SQLITE_BUSY.
type TxRunner struct {
	DB *sql.DB
	// MaxAttempts is the number of tries when the database is busy.
	MaxAttempts int
	// BusyDelay is the first pause after SQLITE_BUSY; it doubles per try.
	BusyDelay time.Duration
}

// NewTxRunner creates a TxRunner for db.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{DB: db, MaxAttempts: 3, BusyDelay: 20 * time.Millisecond}
}

// WithinTx runs fn in a deferred transaction. fn must issue its queries
// through GetQuerier(ctx). fn may run more than once when the database
// stays busy, so it must not have side effects outside the transaction.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.retryBusy(ctx, func() error {
		if _, ok := querierFrom(ctx); ok {
			return ErrNestedTx
		}
		tx, err := r.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// WithinImmediateTx runs fn in a BEGIN IMMEDIATE transaction, taking the
// write lock up front. Read-then-write sequences inside fn are serialized
// against every other writer.
//
// database/sql cannot start an IMMEDIATE transaction on *sql.Tx, so the
// transaction is driven by hand on a pinned connection.
func (r *TxRunner) WithinImmediateTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.retryBusy(ctx, func() error {
		if _, ok := querierFrom(ctx); ok {
			return ErrNestedTx
		}
		conn, err := r.DB.Conn(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return err
		}
		if err := fn(context.WithValue(ctx, txKey{}, conn)); err != nil {
			// The caller's ctx may already be done; rollback must still run.
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
			return err
		}
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
			return err
		}
		return nil
	})
}

// GetQuerier returns the transaction bound to ctx, or the pool.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if q, ok := querierFrom(ctx); ok {
		return q
	}
	return r.DB
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	_, ok := querierFrom(ctx)
	return ok
}

// querierFrom returns the transaction bound to ctx.
func querierFrom(ctx context.Context) (Querier, bool) {
	q, ok := ctx.Value(txKey{}).(Querier)
	return q, ok
}

// retryBusy repeats attempt while it fails with SQLITE_BUSY, with a doubling
// pause between tries. Other errors are returned at once.
func (r *TxRunner) retryBusy(ctx context.Context, attempt func() error) error {
	delay := r.BusyDelay
	var err error
	for i := 1; i <= r.MaxAttempts; i++ {
		if err = attempt(); err == nil || !IsBusy(err) || i == r.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return fmt.Errorf("sqlite: busy after %d attempts: %w", r.MaxAttempts, err)
}

// IsBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, matched on
// the message text so wrapped errors are recognized too.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") ||
		strings.Contains(s, "SQLITE_BUSY") ||
		strings.Contains(s, "database table is locked")
}
