package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WaitOptions controls WaitForDB.
type WaitOptions struct {
	// MaxRetries caps the number of pings. 0 retries until ctx is done.
	MaxRetries int
	// InitialInterval is the pause after the first failed ping.
	InitialInterval time.Duration
	// MaxInterval caps the doubling pause between pings.
	MaxInterval time.Duration
	// PingTimeout bounds a single ping.
	PingTimeout time.Duration
}

// DefaultWaitOptions returns exponential waiting from 1s up to 10s.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		MaxRetries:      10,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		PingTimeout:     3 * time.Second,
	}
}

// WaitForDB blocks until the database at dsn answers a ping. The pause
// between pings doubles up to MaxInterval. It is meant for start-up, when
// the server may come up after the service, e.g. under docker compose.
func WaitForDB(ctx context.Context, dsn string, opts WaitOptions) error {
	interval := opts.InitialInterval
	for attempt := 1; ; attempt++ {
		err := ping(ctx, dsn, opts.PingTimeout)
		if err == nil {
			return nil
		}
		if opts.MaxRetries > 0 && attempt >= opts.MaxRetries {
			return fmt.Errorf("database not available after %d attempts: %w", attempt, err)
		}
		// Wait before the next try, or give up with the caller.
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(interval):
		}
		interval = nextInterval(interval, opts.MaxInterval)
	}
}

// HealthCheckPool runs a trivial query through pool. It backs the store
// health check and has its own 5s bound.
func HealthCheckPool(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("pool is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var one int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health query failed: %w", err)
	}
	return nil
}

// ping opens a throwaway pool so a wrong DSN surfaces on every attempt.
func ping(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Close()
	return pool.Ping(ctx)
}

// nextInterval doubles cur, capped at limit when limit is set.
func nextInterval(cur, limit time.Duration) time.Duration {
	next := cur * 2
	if limit > 0 && next > limit {
		return limit
	}
	return next
}
