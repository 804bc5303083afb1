package pg

import (
	"errors"
	"fmt"
	"io/fs"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationInfo describes the outcome of ApplyMigrations.
type MigrationInfo struct {
	// Applied is true when at least one migration ran.
	Applied bool
	// CurrentVersion is the schema version before the run.
	CurrentVersion uint
	// FinalVersion is the schema version after the run.
	FinalVersion uint
	// Dirty reports a previous migration that failed halfway.
	Dirty bool
}

// newMigrate builds a migrator reading SQL files from fsys/dir.
// Callers must Close it.
func newMigrate(dsn string, fsys fs.FS, dir string) (*migrate.Migrate, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateURL rewrites a postgresql:// DSN to the postgres:// scheme that the
// golang-migrate driver is registered under.
func MigrateURL(dsn string) string {
	const long = "postgresql://"
	if len(dsn) >= len(long) && dsn[:len(long)] == long {
		return "postgres://" + dsn[len(long):]
	}
	return dsn
}

// ApplyMigrations applies all pending migrations from fsys/dir. A dirty
// database is reported as an error and left untouched; it needs a manual
// `migrate force` before the service can start again.
func ApplyMigrations(dsn string, fsys fs.FS, dir string) (MigrationInfo, error) {
	m, err := newMigrate(dsn, fsys, dir)
	if err != nil {
		return MigrationInfo{}, err
	}
	defer m.Close()

	var info MigrationInfo
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return info, fmt.Errorf("read current version: %w", err)
	}
	info.CurrentVersion, info.Dirty = v, dirty
	if dirty {
		return info, fmt.Errorf("database is in dirty state at version %d", v)
	}

	if err := m.Up(); err != nil {
		// Nothing pending is not a failure.
		if errors.Is(err, migrate.ErrNoChange) {
			info.FinalVersion = v
			return info, nil
		}
		return info, fmt.Errorf("apply migrations: %w", err)
	}
	info.Applied = true
	if fv, _, err := m.Version(); err == nil {
		info.FinalVersion = fv
	}
	return info, nil
}

// RollbackMigrations reverts the last steps migrations. It backs the
// `migrate down` command.
func RollbackMigrations(dsn string, fsys fs.FS, dir string, steps int) error {
	m, err := newMigrate(dsn, fsys, dir)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	return nil
}
