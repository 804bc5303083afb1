// Package pgstore persists notes, regenerations and AI error logs in
// PostgreSQL through pgx.
package pgstore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartnotes/internal/platform/pg"
	"smartnotes/internal/shared"
)

// Store implements notes.Repository, quota.Store and ailog.Store.
type Store struct {
	pool *pgxpool.Pool
	tx   *pg.TxRunner
	now  func() time.Time
	log  *slog.Logger
}

// New creates a Store on pool. The schema must already be migrated.
func New(pool *pgxpool.Pool, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool: pool,
		tx:   pg.NewTxRunner(pool),
		now:  time.Now,
		log:  log.With(slog.String("component", "pgstore")),
	}
}

// WithinTx runs fn in a transaction, joining the one already bound to ctx.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.WithinTx(ctx, fn)
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return pg.HealthCheckPool(ctx, s.pool)
}

func (s *Store) q(ctx context.Context) pg.Querier {
	return s.tx.GetQuerier(ctx)
}

// likePattern escapes s for an ILIKE substring match with the default
// backslash escape.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func mustAffect(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return notFoundOr(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// notFoundOr maps missing rows and malformed ids to shared.ErrNotFound.
func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return shared.ErrNotFound
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
