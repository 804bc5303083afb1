package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/ailog"
)

var _ ailog.Store = (*Store)(nil)

const errorLogColumns = `id::text, user_id, note_id::text, error_type, severity, error_message, context, retry_count, created_at, resolved_at`

// InsertErrorLog stores e.
func (s *Store) InsertErrorLog(ctx context.Context, e ailog.Entry) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO ai_error_logs (id, user_id, note_id, error_type, severity, error_message, context, retry_count, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.UserID, nullable(e.NoteID), string(e.Type), string(e.Severity), e.Message, e.Context,
		e.RetryCount, e.CreatedAt, e.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

// ListErrorLogs returns a page of the user's error logs, newest first.
func (s *Store) ListErrorLogs(ctx context.Context, userID string, limit, offset int) ([]ailog.Entry, error) {
	return s.queryErrorLogs(ctx,
		`SELECT `+errorLogColumns+` FROM ai_error_logs WHERE user_id = $1
		  ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

// ErrorLogsSince returns the user's error logs created at or after since.
func (s *Store) ErrorLogsSince(ctx context.Context, userID string, since time.Time) ([]ailog.Entry, error) {
	return s.queryErrorLogs(ctx,
		`SELECT `+errorLogColumns+` FROM ai_error_logs WHERE user_id = $1 AND created_at >= $2
		  ORDER BY created_at DESC`, userID, since)
}

// ResolveErrorLog marks one of the user's error logs resolved.
func (s *Store) ResolveErrorLog(ctx context.Context, userID, id string, at time.Time) error {
	return mustAffect(s.q(ctx).Exec(ctx,
		`UPDATE ai_error_logs SET resolved_at = $1 WHERE id = $2 AND user_id = $3`, at, id, userID))
}

// PruneErrorLogs deletes error logs resolved before resolvedBefore.
func (s *Store) PruneErrorLogs(ctx context.Context, resolvedBefore time.Time) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx,
		`DELETE FROM ai_error_logs WHERE resolved_at IS NOT NULL AND resolved_at < $1`, resolvedBefore)
	if err != nil {
		return 0, fmt.Errorf("prune error logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) queryErrorLogs(ctx context.Context, query string, args ...any) ([]ailog.Entry, error) {
	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error logs: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ailog.Entry, error) {
		var (
			e             ailog.Entry
			noteID        *string
			typ, severity string
		)
		if err := row.Scan(&e.ID, &e.UserID, &noteID, &typ, &severity, &e.Message, &e.Context,
			&e.RetryCount, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return e, err
		}
		if noteID != nil {
			e.NoteID = *noteID
		}
		e.Type, e.Severity = aierr.Type(typ), aierr.Severity(severity)
		e.CreatedAt = e.CreatedAt.UTC()
		if e.ResolvedAt != nil {
			t := e.ResolvedAt.UTC()
			e.ResolvedAt = &t
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan error logs: %w", err)
	}
	return out, nil
}
