package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/ailog"
)

var _ ailog.Store = (*Store)(nil)

const errorLogColumns = `id, user_id, note_id, error_type, severity, error_message, context, retry_count, created_at, resolved_at`

// InsertErrorLog stores e.
func (s *Store) InsertErrorLog(ctx context.Context, e ailog.Entry) error {
	var resolved sql.NullInt64
	if e.ResolvedAt != nil {
		resolved = sql.NullInt64{Int64: millis(*e.ResolvedAt), Valid: true}
	}
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO ai_error_logs (`+errorLogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, nullString(e.NoteID), string(e.Type), string(e.Severity), e.Message, e.Context,
		e.RetryCount, millis(e.CreatedAt), resolved)
	if err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

// ListErrorLogs returns a page of the user's error logs, newest first.
func (s *Store) ListErrorLogs(ctx context.Context, userID string, limit, offset int) ([]ailog.Entry, error) {
	return s.queryErrorLogs(ctx,
		`SELECT `+errorLogColumns+` FROM ai_error_logs WHERE user_id = ?
		  ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, userID, limit, offset)
}

// ErrorLogsSince returns the user's error logs created at or after since.
func (s *Store) ErrorLogsSince(ctx context.Context, userID string, since time.Time) ([]ailog.Entry, error) {
	return s.queryErrorLogs(ctx,
		`SELECT `+errorLogColumns+` FROM ai_error_logs WHERE user_id = ? AND created_at >= ?
		  ORDER BY created_at DESC, rowid DESC`, userID, millis(since))
}

// ResolveErrorLog marks one of the user's error logs resolved.
func (s *Store) ResolveErrorLog(ctx context.Context, userID, id string, at time.Time) error {
	return mustAffect(s.q(ctx).ExecContext(ctx,
		`UPDATE ai_error_logs SET resolved_at = ? WHERE id = ? AND user_id = ?`, millis(at), id, userID))
}

// PruneErrorLogs deletes error logs resolved before resolvedBefore.
func (s *Store) PruneErrorLogs(ctx context.Context, resolvedBefore time.Time) (int64, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM ai_error_logs WHERE resolved_at IS NOT NULL AND resolved_at < ?`, millis(resolvedBefore))
	if err != nil {
		return 0, fmt.Errorf("prune error logs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryErrorLogs(ctx context.Context, query string, args ...any) ([]ailog.Entry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error logs: %w", err)
	}
	defer rows.Close()

	out := []ailog.Entry{}
	for rows.Next() {
		var (
			e             ailog.Entry
			noteID        sql.NullString
			typ, severity string
			created       int64
			resolved      sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &noteID, &typ, &severity, &e.Message, &e.Context,
			&e.RetryCount, &created, &resolved); err != nil {
			return nil, err
		}
		e.NoteID = noteID.String
		e.Type, e.Severity = aierr.Type(typ), aierr.Severity(severity)
		e.CreatedAt = fromMillis(created)
		e.ResolvedAt = nullMillis(resolved)
		out = append(out, e)
	}
	return out, rows.Err()
}
