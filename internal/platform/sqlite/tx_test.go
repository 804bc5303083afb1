package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newCounterDB(t *testing.T) *TxRunner {
	t.Helper()
	db := NewTestDB(t, nil, "")
	_, err := db.Exec("CREATE TABLE counter (id INTEGER PRIMARY KEY, n INTEGER NOT NULL)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO counter (id, n) VALUES (1, 0)")
	require.NoError(t, err)
	return NewTxRunner(db)
}

func readCounter(t *testing.T, r *TxRunner) int {
	t.Helper()
	var n int
	require.NoError(t, r.DB.QueryRow("SELECT n FROM counter WHERE id = 1").Scan(&n))
	return n
}

func TestWithinTx_CommitAndRollback(t *testing.T) {
	r := newCounterDB(t)
	ctx := context.Background()

	require.NoError(t, r.WithinTx(ctx, func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		_, err := r.GetQuerier(ctx).ExecContext(ctx, "UPDATE counter SET n = n + 1")
		return err
	}))
	assert.Equal(t, 1, readCounter(t, r))

	boom := errors.New("boom")
	err := r.WithinTx(ctx, func(ctx context.Context) error {
		_, err := r.GetQuerier(ctx).ExecContext(ctx, "UPDATE counter SET n = n + 1")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, readCounter(t, r))
}

func TestWithinImmediateTx_Rollback(t *testing.T) {
	r := newCounterDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := r.WithinImmediateTx(ctx, func(ctx context.Context) error {
		_, err := r.GetQuerier(ctx).ExecContext(ctx, "UPDATE counter SET n = 42")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, readCounter(t, r))
}

func TestWithinImmediateTx_SerializesReadModifyWrite(t *testing.T) {
	r := newCounterDB(t)
	ctx := context.Background()
	const workers = 8

	var eg errgroup.Group
	for range workers {
		eg.Go(func() error {
			return r.WithinImmediateTx(ctx, func(ctx context.Context) error {
				q := r.GetQuerier(ctx)
				var n int
				if err := q.QueryRowContext(ctx, "SELECT n FROM counter WHERE id = 1").Scan(&n); err != nil {
					return err
				}
				_, err := q.ExecContext(ctx, "UPDATE counter SET n = ? WHERE id = 1", n+1)
				return err
			})
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, workers, readCounter(t, r))
}

func TestWithinTx_Nested(t *testing.T) {
	r := newCounterDB(t)
	ctx := context.Background()

	err := r.WithinTx(ctx, func(ctx context.Context) error {
		return r.WithinImmediateTx(ctx, func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrNestedTx)
}

func TestGetQuerier_OutsideTx(t *testing.T) {
	r := newCounterDB(t)
	assert.Same(t, r.DB, r.GetQuerier(context.Background()))
	assert.False(t, InTx(context.Background()))
}

func TestRetryBusy(t *testing.T) {
	r := &TxRunner{MaxAttempts: 3}
	var mu sync.Mutex
	calls := 0

	err := r.retryBusy(context.Background(), func() error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = r.retryBusy(context.Background(), func() error {
		calls++
		return errors.New("syntax error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, IsBusy(errors.New("database is locked")))
	assert.True(t, IsBusy(errors.New("SQLITE_BUSY")))
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(errors.New("no such table")))
}
