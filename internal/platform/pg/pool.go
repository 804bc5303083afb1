// Package pg provides the PostgreSQL pool, transaction runner, health checks
// and golang-migrate integration used by the postgres store.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions configures the pgx connection pool.
type PoolOptions struct {
	// MaxConns is the upper bound of open connections.
	MaxConns int32
	// MinConns is the number of connections kept open while idle.
	MinConns int32
	// HealthCheckPeriod is how often idle connections are checked.
	HealthCheckPeriod time.Duration
	// MaxConnLifetime is how long a connection lives before it is replaced.
	MaxConnLifetime time.Duration
	// MaxConnIdleTime is how long an unused connection is kept.
	MaxConnIdleTime time.Duration
	// PingTimeout bounds the connectivity check done when the pool is created.
	PingTimeout time.Duration
}

// DefaultPoolOptions returns pool settings for a small API service.
// Note reads and AI result writes are short, so a few connections suffice.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:          20,
		MinConns:          2,
		HealthCheckPeriod: 30 * time.Second,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   10 * time.Minute,
		PingTimeout:       5 * time.Second,
	}
}

// NewPool creates a pool with DefaultPoolOptions and pings it.
// The pool is closed again if the database does not answer.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return NewPoolWithOptions(ctx, dsn, DefaultPoolOptions())
}

// NewPoolWithOptions creates a pool with the given options and pings it.
func NewPoolWithOptions(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	// Apply the options on top of whatever the DSN set.
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.HealthCheckPeriod = opts.HealthCheckPeriod
	cfg.MaxConnLifetime = opts.MaxConnLifetime
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Fail fast on a bad DSN or an unreachable server.
	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
