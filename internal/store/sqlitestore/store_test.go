package sqlitestore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/ailog"
	"smartnotes/internal/notes"
	"smartnotes/internal/platform/sqlite"
	"smartnotes/internal/quota"
	"smartnotes/internal/shared"
	"smartnotes/internal/store/sqlitestore"
	"smartnotes/migrations"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	return sqlitestore.New(sqlite.NewTestDB(t, migrations.FS, migrations.SQLiteDir), nil)
}

func createNote(t *testing.T, s *sqlitestore.Store, userID, title, content string, at time.Time) *notes.Note {
	t.Helper()
	n := &notes.Note{ID: uuid.NewString(), UserID: userID, Title: title, Content: content, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, s.CreateNote(context.Background(), n))
	return n
}

func TestNotes_CRUD(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	n := createNote(t, s, "u1", "제목", "내용", base)

	got, err := s.GetNote(ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, "제목", got.Title)
	assert.Equal(t, base, got.CreatedAt)
	assert.Nil(t, got.Summary)
	assert.Equal(t, []string{}, got.Tags)

	_, err = s.GetNote(ctx, "u2", n.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	got.Title, got.UpdatedAt = "새 제목", base.Add(time.Hour)
	require.NoError(t, s.UpdateNote(ctx, got))
	got, err = s.GetNote(ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, "새 제목", got.Title)
	assert.Equal(t, base.Add(time.Hour), got.UpdatedAt)

	other := *got
	other.UserID = "u2"
	assert.ErrorIs(t, s.UpdateNote(ctx, &other), shared.ErrNotFound)

	assert.ErrorIs(t, s.DeleteNote(ctx, "u2", n.ID), shared.ErrNotFound)
	require.NoError(t, s.DeleteNote(ctx, "u1", n.ID))
	_, err = s.GetNote(ctx, "u1", n.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSummaryAndTags(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	n := createNote(t, s, "u1", "t", "c", base)

	require.NoError(t, s.SaveSummary(ctx, n.ID, notes.Summary{Model: "gemini-2.0-flash-001", Content: "첫 요약", CreatedAt: base}))
	require.NoError(t, s.SaveSummary(ctx, n.ID, notes.Summary{Model: notes.ManualModel, Content: "둘째", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.SaveTags(ctx, n.ID, []string{"zeta", "alpha", "웹개발"}))

	got, err := s.GetNote(ctx, "u1", n.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, notes.Summary{Model: notes.ManualModel, Content: "둘째", CreatedAt: base.Add(time.Minute)}, *got.Summary)
	assert.Equal(t, []string{"zeta", "alpha", "웹개발"}, got.Tags)

	require.NoError(t, s.SaveTags(ctx, n.ID, []string{"go"}))
	got, err = s.GetNote(ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, got.Tags)
}

func TestListNotes_SearchRanksTitleMatchesFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	createNote(t, s, "u1", "회의록", "golang 이야기", base.Add(3*time.Hour))
	createNote(t, s, "u1", "Golang 입문", "기초", base.Add(1*time.Hour))
	createNote(t, s, "u1", "장보기", "우유", base.Add(2*time.Hour))
	createNote(t, s, "u2", "golang", "다른 사용자", base)

	items, total, err := s.ListNotes(ctx, notes.NormalizeListQuery(notes.ListQuery{UserID: "u1", Search: "golang"}))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Golang 입문", items[0].Title)
	assert.Equal(t, "회의록", items[1].Title)
}

func TestListNotes_SearchEscapesWildcards(t *testing.T) {
	s := newStore(t)
	createNote(t, s, "u1", "100% 완료", "", base)
	createNote(t, s, "u1", "1000 완료", "", base)

	items, total, err := s.ListNotes(context.Background(), notes.NormalizeListQuery(notes.ListQuery{UserID: "u1", Search: "0%"}))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "100% 완료", items[0].Title)
}

func TestListNotes_SortAndPaging(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i, title := range []string{"b", "c", "a"} {
		createNote(t, s, "u1", title, "", base.Add(time.Duration(i)*time.Minute))
	}

	titles := func(sort notes.Sort, page, limit int) []string {
		items, total, err := s.ListNotes(ctx, notes.NormalizeListQuery(notes.ListQuery{UserID: "u1", Sort: sort, Page: page, Limit: limit}))
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		var out []string
		for _, n := range items {
			out = append(out, n.Title)
		}
		return out
	}

	assert.Equal(t, []string{"a", "c", "b"}, titles(notes.SortNewest, 1, 10))
	assert.Equal(t, []string{"b", "c", "a"}, titles(notes.SortOldest, 1, 10))
	assert.Equal(t, []string{"a", "b", "c"}, titles(notes.SortTitle, 1, 10))
	assert.Equal(t, []string{"c"}, titles(notes.SortTitle, 2, 2))
	assert.Empty(t, titles(notes.SortNewest, 5, 2))
}

func TestEdits_NewestFirstAndCascade(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	n := createNote(t, s, "u1", "t", "c", base)

	for i := range 3 {
		require.NoError(t, s.AddEdit(ctx, notes.Edit{
			ID: uuid.NewString(), NoteID: n.ID, Kind: notes.EditTags, Manual: i == 2,
			Original: fmt.Sprint(i), Edited: fmt.Sprint(i + 1), EditedBy: "u1", EditedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	edits, err := s.ListEdits(ctx, n.ID, 2)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, "3", edits[0].Edited)
	assert.True(t, edits[0].Manual)
	assert.False(t, edits[1].Manual)

	require.NoError(t, s.DeleteNote(ctx, "u1", n.ID))
	edits, err = s.ListEdits(ctx, n.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestWithinTx_RollsBack(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	n := createNote(t, s, "u1", "t", "c", base)

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.SaveTags(ctx, n.ID, []string{"a", "b"}))
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	got, err := s.GetNote(ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func reservation(noteID string, at time.Time) quota.Reservation {
	return quota.Reservation{ID: uuid.NewString(), UserID: "u1", NoteID: noteID, Target: "both", At: at}
}

func TestReserve_Limit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	n := createNote(t, s, "u1", "t", "c", base)
	since := base.Truncate(24 * time.Hour)

	require.NoError(t, s.InsertRegeneration(ctx, reservation(n.ID, since.Add(-time.Minute))))

	for i := 1; i <= 3; i++ {
		count, ok, err := s.Reserve(ctx, reservation(n.ID, base), since, 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, count)
	}
	count, ok, err := s.Reserve(ctx, reservation(n.ID, base), since, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, count)

	n2, err := s.CountSince(ctx, "u1", since)
	require.NoError(t, err)
	assert.Equal(t, 3, n2)

	pruned, err := s.PruneRegenerations(ctx, since)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)
}

func TestReserve_ConcurrentCallersNeverExceedLimit(t *testing.T) {
	s := newStore(t)
	n := createNote(t, s, "u1", "t", "c", base)
	since := base.Truncate(24 * time.Hour)

	var (
		mu      sync.Mutex
		granted int
		eg      errgroup.Group
	)
	for range 20 {
		eg.Go(func() error {
			_, ok, err := s.Reserve(context.Background(), reservation(n.ID, base), since, 10)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, 10, granted)

	count, err := s.CountSince(context.Background(), "u1", since)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestErrorLogs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	entry := func(id string, at time.Time, noteID string) ailog.Entry {
		return ailog.Entry{
			ID: id, UserID: "u1", NoteID: noteID, Type: aierr.TypeNetwork, Severity: aierr.SeverityMedium,
			Message: "fetch failed", Context: "summary", RetryCount: 3, CreatedAt: at,
		}
	}
	require.NoError(t, s.InsertErrorLog(ctx, entry("e1", base, "")))
	require.NoError(t, s.InsertErrorLog(ctx, entry("e2", base.Add(time.Hour), uuid.NewString())))

	list, err := s.ListErrorLogs(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e2", list[0].ID)
	assert.Equal(t, aierr.TypeNetwork, list[0].Type)
	assert.Empty(t, list[1].NoteID)
	assert.Nil(t, list[1].ResolvedAt)

	since, err := s.ErrorLogsSince(ctx, "u1", base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, since, 1)

	assert.ErrorIs(t, s.ResolveErrorLog(ctx, "u2", "e1", base), shared.ErrNotFound)
	require.NoError(t, s.ResolveErrorLog(ctx, "u1", "e1", base.Add(2*time.Hour)))

	list, err = s.ListErrorLogs(ctx, "u1", 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].ResolvedAt)
	assert.Equal(t, base.Add(2*time.Hour), *list[0].ResolvedAt)

	pruned, err := s.PruneErrorLogs(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)
}
