// Package sqlitestore persists notes, regenerations and AI error logs in an
// embedded SQLite database. Timestamps are stored as unix milliseconds.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"smartnotes/internal/platform/sqlite"
	"smartnotes/internal/shared"
)

// Store implements notes.Repository, quota.Store and ailog.Store.
type Store struct {
	db  *sql.DB
	tx  *sqlite.TxRunner
	now func() time.Time
	log *slog.Logger
}

// New creates a Store on db. The schema must already be migrated.
func New(db *sql.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:  db,
		tx:  sqlite.NewTxRunner(db),
		now: time.Now,
		log: log.With(slog.String("component", "sqlitestore")),
	}
}

// WithinTx runs fn in a transaction, joining the one already bound to ctx.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if sqlite.InTx(ctx) {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, fn)
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) q(ctx context.Context) sqlite.Querier {
	return s.tx.GetQuerier(ctx)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// likePattern escapes s for a LIKE ... ESCAPE '\' substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
