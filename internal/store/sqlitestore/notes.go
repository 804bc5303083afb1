package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"smartnotes/internal/notes"
)

var _ notes.Repository = (*Store)(nil)

const noteColumns = `n.id, n.user_id, n.title, n.content, n.created_at, n.updated_at,
	s.model, s.content, s.created_at`

// CreateNote inserts n.
func (s *Store) CreateNote(ctx context.Context, n *notes.Note) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Content, millis(n.CreatedAt), millis(n.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// GetNote loads a note with its summary and tags.
func (s *Store) GetNote(ctx context.Context, userID, id string) (*notes.Note, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+noteColumns+`
		   FROM notes n LEFT JOIN summaries s ON s.note_id = n.id
		  WHERE n.id = ? AND n.user_id = ?`, id, userID)
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
// A search matches title or content; title matches come first.
func (s *Store) ListNotes(ctx context.Context, q notes.ListQuery) ([]notes.Note, int, error) {
	where := "n.user_id = ?"
	args := []any{q.UserID}
	order := orderBy(q.Sort)
	var rankArgs []any
	if q.Search != "" {
		p := likePattern(q.Search)
		where += ` AND (n.title LIKE ? ESCAPE '\' OR n.content LIKE ? ESCAPE '\')`
		args = append(args, p, p)
		order = `CASE WHEN n.title LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, ` + order
		rankArgs = []any{p}
	}

	var total int
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM notes n WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}
	if total == 0 {
		return []notes.Note{}, 0, nil
	}

	query := `SELECT ` + noteColumns + `
	            FROM notes n LEFT JOIN summaries s ON s.note_id = n.id
	           WHERE ` + where + `
	           ORDER BY ` + order + `
	           LIMIT ? OFFSET ?`
	all := append(append(args, rankArgs...), q.Limit, q.Offset())
	rows, err := s.q(ctx).QueryContext(ctx, query, all...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []notes.Note
	var ids []string
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
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
	return mustAffect(s.q(ctx).ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		n.Title, n.Content, millis(n.UpdatedAt), n.ID, n.UserID))
}

// DeleteNote removes a note; summary, tags, history and regenerations
// cascade.
func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	return mustAffect(s.q(ctx).ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID))
}

// SaveSummary inserts or replaces the summary of a note.
func (s *Store) SaveSummary(ctx context.Context, noteID string, sum notes.Summary) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO summaries (id, note_id, model, content, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (note_id) DO UPDATE SET
		     model = excluded.model, content = excluded.content, created_at = excluded.created_at`,
		uuid.NewString(), noteID, sum.Model, sum.Content, millis(sum.CreatedAt))
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// SaveTags replaces the tags of a note, keeping their order.
func (s *Store) SaveTags(ctx context.Context, noteID string, tags []string) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID); err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		now := millis(s.now())
		for i, tag := range tags {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO note_tags (id, note_id, tag, position, created_at) VALUES (?, ?, ?, ?, ?)`,
				uuid.NewString(), noteID, tag, i, now); err != nil {
				return fmt.Errorf("insert tag: %w", err)
			}
		}
		return nil
	})
}

// AddEdit appends an edit-history row.
func (s *Store) AddEdit(ctx context.Context, e notes.Edit) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO edit_history (id, note_id, type, is_manual_edit, original_content, edited_content, edited_by, edited_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.NoteID, string(e.Kind), e.Manual, e.Original, e.Edited, e.EditedBy, millis(e.EditedAt))
	if err != nil {
		return fmt.Errorf("insert edit: %w", err)
	}
	return nil
}

// ListEdits returns the latest edits of a note, newest first.
func (s *Store) ListEdits(ctx context.Context, noteID string, limit int) ([]notes.Edit, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, note_id, type, is_manual_edit, original_content, edited_content, edited_by, edited_at
		   FROM edit_history WHERE note_id = ?
		  ORDER BY edited_at DESC, rowid DESC LIMIT ?`, noteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	defer rows.Close()

	out := []notes.Edit{}
	for rows.Next() {
		var (
			e    notes.Edit
			kind string
			at   int64
		)
		if err := rows.Scan(&e.ID, &e.NoteID, &kind, &e.Manual, &e.Original, &e.Edited, &e.EditedBy, &at); err != nil {
			return nil, err
		}
		e.Kind = notes.EditKind(kind)
		e.EditedAt = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(sc scanner) (*notes.Note, error) {
	var (
		n                notes.Note
		created, updated int64
		model, summary   sql.NullString
		summaryCreated   sql.NullInt64
	)
	if err := sc.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &created, &updated,
		&model, &summary, &summaryCreated); err != nil {
		return nil, err
	}
	n.CreatedAt, n.UpdatedAt = fromMillis(created), fromMillis(updated)
	if summary.Valid {
		n.Summary = &notes.Summary{Model: model.String, Content: summary.String, CreatedAt: fromMillis(summaryCreated.Int64)}
	}
	return &n, nil
}

func (s *Store) tagsFor(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT note_id, tag FROM note_tags WHERE note_id IN (`+placeholders(len(ids))+`) ORDER BY note_id, position`,
		args...)
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
		return "n.title COLLATE NOCASE ASC, n.id"
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
