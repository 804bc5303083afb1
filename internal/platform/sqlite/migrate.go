package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	migrate "github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// newMigrate binds golang-migrate to db and the migration files under dir.
// The returned instance must not be closed: closing it closes db.
func newMigrate(db *sql.DB, fsys fs.FS, dir string) (*migrate.Migrate, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}
	drv, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// ApplyMigrations applies all pending up migrations. It is safe to call on an
// up to date database.
func ApplyMigrations(db *sql.DB, fsys fs.FS, dir string) error {
	m, err := newMigrate(db, fsys, dir)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RollbackMigrations reverts the last steps migrations. It backs the
// `migrate down` command.
func RollbackMigrations(db *sql.DB, fsys fs.FS, dir string, steps int) error {
	m, err := newMigrate(db, fsys, dir)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the applied version; zero when none is applied.
func MigrationVersion(db *sql.DB, fsys fs.FS, dir string) (uint, bool, error) {
	m, err := newMigrate(db, fsys, dir)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	// A fresh database has no version yet.
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return v, dirty, nil
}
