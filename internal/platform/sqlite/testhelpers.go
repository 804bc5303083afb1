package sqlite

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"
)

// NewTestDB opens a file database in t.TempDir, applies the migrations in
// fsys/dir when fsys is non-nil and closes the database on cleanup.
func NewTestDB(t testing.TB, fsys fs.FS, dir string) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), DefaultOptions())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if fsys != nil {
		if err := ApplyMigrations(db, fsys, dir); err != nil {
			t.Fatalf("apply migrations: %v", err)
		}
	}
	return db
}
