package notes_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"smartnotes/internal/notes"
	"smartnotes/internal/shared"
)

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	mu    sync.Mutex
	notes map[string]*notes.Note
	edits []notes.Edit
	fail  error
}

func newMemRepo() *memRepo { return &memRepo{notes: make(map[string]*notes.Note)} }

func (r *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *memRepo) CreateNote(_ context.Context, n *notes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *n
	r.notes[n.ID] = &c
	return nil
}

func (r *memRepo) GetNote(_ context.Context, userID, id string) (*notes.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok || n.UserID != userID {
		return nil, shared.ErrNotFound
	}
	c := *n
	c.Tags = append([]string{}, n.Tags...)
	return &c, nil
}

func (r *memRepo) ListNotes(_ context.Context, q notes.ListQuery) ([]notes.Note, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []notes.Note
	for _, n := range r.notes {
		if n.UserID == q.UserID {
			all = append(all, *n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	total := len(all)
	off := q.Offset()
	if off >= total {
		return nil, total, nil
	}
	end := min(off+q.Limit, total)
	return all[off:end], total, nil
}

func (r *memRepo) UpdateNote(_ context.Context, n *notes.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.notes[n.ID]
	if !ok || cur.UserID != n.UserID {
		return shared.ErrNotFound
	}
	cur.Title, cur.Content, cur.UpdatedAt = n.Title, n.Content, n.UpdatedAt
	return nil
}

func (r *memRepo) DeleteNote(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok || n.UserID != userID {
		return shared.ErrNotFound
	}
	delete(r.notes, id)
	return nil
}

func (r *memRepo) SaveSummary(_ context.Context, noteID string, s notes.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.notes[noteID].Summary = &s
	return nil
}

func (r *memRepo) SaveTags(_ context.Context, noteID string, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.notes[noteID].Tags = append([]string{}, tags...)
	return nil
}

func (r *memRepo) AddEdit(_ context.Context, e notes.Edit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, e)
	return nil
}

func (r *memRepo) ListEdits(_ context.Context, noteID string, limit int) ([]notes.Edit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notes.Edit
	for i := len(r.edits) - 1; i >= 0 && len(out) < limit; i-- {
		if r.edits[i].NoteID == noteID {
			out = append(out, r.edits[i])
		}
	}
	return out, nil
}

func (r *memRepo) note(id string) notes.Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.notes[id]
}

func (r *memRepo) editKinds() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []string
	for _, e := range r.edits {
		k := string(e.Kind)
		if e.Manual {
			k += "*"
		}
		kinds = append(kinds, k)
	}
	return strings.Join(kinds, ",")
}
