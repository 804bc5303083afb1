// Package notes implements note management and the AI workflows around it:
// background generation after edits, manual edits with history and
// quota-limited regeneration.
package notes

import (
	"context"
	"time"
)

// Note is a user's note with its AI artifacts.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Summary   *Summary  `json:"summary,omitempty"`
	Tags      []string  `json:"tags"`
}

// Summary is the stored summary of a note.
type Summary struct {
	Model     string    `json:"model"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ManualModel is stored as the model of hand-written summaries.
const ManualModel = "manual"

// Sort orders note lists.
type Sort string

const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
	SortTitle  Sort = "title"
)

// ParseSort maps unknown values to SortNewest.
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortOldest, SortTitle:
		return Sort(s)
	default:
		return SortNewest
	}
}

// ListQuery selects a page of a user's notes.
type ListQuery struct {
	UserID string
	Search string
	Sort   Sort
	Page   int
	Limit  int
}

// Offset returns the row offset of the page.
func (q ListQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Page is one page of a note list.
type Page struct {
	Notes      []Note `json:"notes"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}

// EditKind is the artifact an edit changed.
type EditKind string

const (
	EditSummary EditKind = "summary"
	EditTags    EditKind = "tags"
)

// Edit is one edit-history row.
type Edit struct {
	ID       string    `json:"id"`
	NoteID   string    `json:"noteId"`
	Kind     EditKind  `json:"type"`
	Manual   bool      `json:"isManualEdit"`
	Original string    `json:"originalContent"`
	Edited   string    `json:"editedContent"`
	EditedBy string    `json:"editedBy"`
	EditedAt time.Time `json:"editedAt"`
}

// Repository persists notes. Lookups scoped by user report another user's
// note as shared.ErrNotFound.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateNote(ctx context.Context, n *Note) error
	GetNote(ctx context.Context, userID, id string) (*Note, error)
	ListNotes(ctx context.Context, q ListQuery) ([]Note, int, error)
	UpdateNote(ctx context.Context, n *Note) error
	DeleteNote(ctx context.Context, userID, id string) error

	SaveSummary(ctx context.Context, noteID string, s Summary) error
	SaveTags(ctx context.Context, noteID string, tags []string) error

	AddEdit(ctx context.Context, e Edit) error
	ListEdits(ctx context.Context, noteID string, limit int) ([]Edit, error)
}
