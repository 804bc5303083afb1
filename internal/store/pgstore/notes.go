package pgstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"smartnotes/internal/notes"
	"smartnotes/internal/platform/pg"
)

var _ notes.Repository = (*Store)(nil)

const noteColumns = `n.id::text, n.user_id, n.title, n.content, n.created_at, n.updated_at,
	s.model, s.content, s.created_at`

// CreateNote inserts n.
func (s *Store) CreateNote(ctx context.Context, n *notes.Note) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO notes (id, user_id, title, content, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Title, n.Content, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// GetNote loads a note with its summary and tags.
func (s *Store) GetNote(ctx context.Context, userID, id string) (*notes.Note, error) {
	row := s.q(ctx).QueryRow(ctx,
		`SELECT `+noteColumns+`
		   FROM notes n LEFT JOIN summaries s ON s.note_id = n.id
		  WHERE n.id = $1 AND n.user_id = $2`, id, userID)
	n, err := scanNote(row)
	if err != nil {
		return nil, notFoundOr(err)
	}
	tags, err := s.tagsFor(ctx, []string{n.ID})
	if err != nil {
		return nil, err
	}
	n.Tags = tagsOrEmpty(tags[n.ID])
	return n, nil
}

// ListNotes returns one page of q.UserID's notes and the total match count.
// A search matches title or content case-insensitively; title matches come
// first.
func (s *Store) ListNotes(ctx context.Context, q notes.ListQuery) ([]notes.Note, int, error) {
	where := "n.user_id = $1"
	args := []any{q.UserID}
	order := orderBy(q.Sort)
	if q.Search != "" {
		args = append(args, likePattern(q.Search))
		where += " AND (n.title ILIKE $2 OR n.content ILIKE $2)"
		order = "CASE WHEN n.title ILIKE $2 THEN 0 ELSE 1 END, " + order
	}

	var total int
	if err := s.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM notes n WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}
	if total == 0 {
		return []notes.Note{}, 0, nil
	}

	limitAt := strconv.Itoa(len(args) + 1)
	offsetAt := strconv.Itoa(len(args) + 2)
	query := `SELECT ` + noteColumns + `
	            FROM notes n LEFT JOIN summaries s ON s.note_id = n.id
	           WHERE ` + where + `
	           ORDER BY ` + order + `
	           LIMIT $` + limitAt + ` OFFSET $` + offsetAt
	rows, err := s.q(ctx).Query(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notes.Note, error) {
		n, err := scanNote(row)
		if err != nil {
			return notes.Note{}, err
		}
		return *n, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan notes: %w", err)
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	tags, err := s.tagsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Tags = tagsOrEmpty(tags[out[i].ID])
	}
	return out, total, nil
}

// UpdateNote writes title, content and updated_at of n.
func (s *Store) UpdateNote(ctx context.Context, n *notes.Note) error {
	return mustAffect(s.q(ctx).Exec(ctx,
		`UPDATE notes SET title = $1, content = $2, updated_at = $3 WHERE id = $4 AND user_id = $5`,
		n.Title, n.Content, n.UpdatedAt, n.ID, n.UserID))
}

// DeleteNote removes a note; summary, tags, history and regenerations
// cascade.
func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	return mustAffect(s.q(ctx).Exec(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, id, userID))
}

// SaveSummary inserts or replaces the summary of a note.
func (s *Store) SaveSummary(ctx context.Context, noteID string, sum notes.Summary) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO summaries (id, note_id, model, content, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (note_id) DO UPDATE SET
		     model = EXCLUDED.model, content = EXCLUDED.content, created_at = EXCLUDED.created_at`,
		uuid.NewString(), noteID, sum.Model, sum.Content, sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// SaveTags replaces the tags of a note, keeping their order.
func (s *Store) SaveTags(ctx context.Context, noteID string, tags []string) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		if _, err := q.Exec(ctx, `DELETE FROM note_tags WHERE note_id = $1`, noteID); err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		if len(tags) == 0 {
			return nil
		}
		now := s.now().UTC()
		batch := &pgx.Batch{}
		for i, tag := range tags {
			batch.Queue(`INSERT INTO note_tags (id, note_id, tag, position, created_at) VALUES ($1, $2, $3, $4, $5)`,
				uuid.NewString(), noteID, tag, i, now)
		}
		tx, _ := pg.PgxTx(ctx)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert tags: %w", err)
		}
		return nil
	})
}

// AddEdit appends an edit-history row.
func (s *Store) AddEdit(ctx context.Context, e notes.Edit) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO edit_history (id, note_id, type, is_manual_edit, original_content, edited_content, edited_by, edited_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.NoteID, string(e.Kind), e.Manual, e.Original, e.Edited, e.EditedBy, e.EditedAt)
	if err != nil {
		return fmt.Errorf("insert edit: %w", err)
	}
	return nil
}

// ListEdits returns the latest edits of a note, newest first.
func (s *Store) ListEdits(ctx context.Context, noteID string, limit int) ([]notes.Edit, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT id::text, note_id::text, type, is_manual_edit, original_content, edited_content, edited_by, edited_at
		   FROM edit_history WHERE note_id = $1
		  ORDER BY edited_at DESC LIMIT $2`, noteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notes.Edit, error) {
		var (
			e    notes.Edit
			kind string
		)
		err := row.Scan(&e.ID, &e.NoteID, &kind, &e.Manual, &e.Original, &e.Edited, &e.EditedBy, &e.EditedAt)
		e.Kind = notes.EditKind(kind)
		e.EditedAt = e.EditedAt.UTC()
		return e, err
	})
	if err != nil {
		return nil, notFoundOr(err)
	}
	return out, nil
}

func scanNote(row pgx.Row) (*notes.Note, error) {
	var (
		n              notes.Note
		model, summary *string
		summaryCreated *time.Time
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt,
		&model, &summary, &summaryCreated); err != nil {
		return nil, err
	}
	n.CreatedAt, n.UpdatedAt = n.CreatedAt.UTC(), n.UpdatedAt.UTC()
	if summary != nil {
		n.Summary = &notes.Summary{Content: *summary}
		if model != nil {
			n.Summary.Model = *model
		}
		if summaryCreated != nil {
			n.Summary.CreatedAt = summaryCreated.UTC()
		}
	}
	return &n, nil
}

func (s *Store) tagsFor(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.q(ctx).Query(ctx,
		`SELECT note_id::text, tag FROM note_tags WHERE note_id = ANY($1::uuid[]) ORDER BY note_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		out[id] = append(out[id], tag)
	}
	return out, rows.Err()
}

func orderBy(s notes.Sort) string {
	switch s {
	case notes.SortOldest:
		return "n.updated_at ASC, n.id"
	case notes.SortTitle:
		return "lower(n.title) ASC, n.id"
	default:
		return "n.updated_at DESC, n.id"
	}
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
