package notes_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartnotes/internal/notes"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"blank", "   ", notes.DefaultTitle, false},
		{"trimmed", "  회의록 ", "회의록", false},
		{"max runes", strings.Repeat("가", 200), strings.Repeat("가", 200), false},
		{"too long", strings.Repeat("가", 201), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := notes.NormalizeTitle(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTags(t *testing.T) {
	got, err := notes.ValidateTags([]string{" Go ", "go", "동시성"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "동시성"}, got)

	_, err = notes.ValidateTags(nil)
	assert.Error(t, err)
}

func TestNormalizeListQuery(t *testing.T) {
	q := notes.NormalizeListQuery(notes.ListQuery{Page: -1, Limit: 500, Sort: "random", Search: "  go "})
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, notes.MaxPageSize, q.Limit)
	assert.Equal(t, notes.SortNewest, q.Sort)
	assert.Equal(t, "go", q.Search)
	assert.Equal(t, 0, q.Offset())

	q = notes.NormalizeListQuery(notes.ListQuery{Page: 3, Sort: notes.SortTitle})
	assert.Equal(t, notes.DefaultPageSize, q.Limit)
	assert.Equal(t, notes.SortTitle, q.Sort)
	assert.Equal(t, 20, q.Offset())
}
