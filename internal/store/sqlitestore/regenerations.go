package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"smartnotes/internal/quota"
)

var (
	_ quota.Store         = (*Store)(nil)
	_ quota.HistoryWriter = (*Store)(nil)
)

// CountSince counts the user's regenerations at or after since.
func (s *Store) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_regenerations WHERE user_id = ? AND created_at >= ?`,
		userID, millis(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count regenerations: %w", err)
	}
	return n, nil
}

// Reserve counts and records a regeneration under the database write lock,
// so concurrent reservations of one user cannot both pass the limit.
func (s *Store) Reserve(ctx context.Context, r quota.Reservation, since time.Time, limit int) (int, bool, error) {
	var (
		count int
		ok    bool
	)
	err := s.tx.WithinImmediateTx(ctx, func(ctx context.Context) error {
		n, err := s.CountSince(ctx, r.UserID, since)
		if err != nil {
			return err
		}
		if n >= limit {
			count = n
			return nil
		}
		if err := s.InsertRegeneration(ctx, r); err != nil {
			return err
		}
		count, ok = n+1, true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return count, ok, nil
}

// InsertRegeneration records r without checking any limit.
func (s *Store) InsertRegeneration(ctx context.Context, r quota.Reservation) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO ai_regenerations (id, note_id, user_id, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.NoteID, r.UserID, r.Target, millis(r.At))
	if err != nil {
		return fmt.Errorf("insert regeneration: %w", err)
	}
	return nil
}

// PruneRegenerations deletes regenerations older than before.
func (s *Store) PruneRegenerations(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM ai_regenerations WHERE created_at < ?`, millis(before))
	if err != nil {
		return 0, fmt.Errorf("prune regenerations: %w", err)
	}
	return res.RowsAffected()
}
