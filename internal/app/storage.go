package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smartnotes/internal/ailog"
	"smartnotes/internal/notes"
	"smartnotes/internal/platform/pg"
	"smartnotes/internal/platform/redis"
	"smartnotes/internal/platform/sqlite"
	"smartnotes/internal/quota"
	"smartnotes/internal/store/pgstore"
	"smartnotes/internal/store/sqlitestore"
	"smartnotes/migrations"
)

// backend is what both store implementations provide.
type backend interface {
	notes.Repository
	quota.Store
	InsertRegeneration(ctx context.Context, r quota.Reservation) error
	PruneRegenerations(ctx context.Context, before time.Time) (int64, error)
	ailog.Store
	Ping(ctx context.Context) error
}

type store struct {
	backend
	close func()
}

// openStore connects the configured database. When migrate is set pending
// migrations are applied first.
func (a *App) openStore(ctx context.Context, migrate bool) (*store, error) {
	switch a.cfg.DB.Driver {
	case "postgres":
		if err := pg.WaitForDB(ctx, a.cfg.DB.URL, pg.DefaultWaitOptions()); err != nil {
			return nil, err
		}
		if migrate {
			info, err := pg.ApplyMigrations(a.cfg.DB.URL, migrations.FS, migrations.PostgresDir)
			if err != nil {
				return nil, err
			}
			a.log.Info("migrations checked",
				slog.Bool("applied", info.Applied),
				slog.Uint64("version", uint64(info.FinalVersion)),
			)
		}
		pool, err := pg.NewPool(ctx, a.cfg.DB.URL)
		if err != nil {
			return nil, err
		}
		return &store{backend: pgstore.New(pool, a.log), close: pool.Close}, nil

	default:
		db, err := sqlite.Open(ctx, a.cfg.DB.SQLitePath, sqlite.DefaultOptions())
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := sqlite.ApplyMigrations(db, migrations.FS, migrations.SQLiteDir); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &store{backend: sqlitestore.New(db, a.log), close: func() { _ = db.Close() }}, nil
	}
}

// quotaStore returns the Redis counter when REDIS_URL is set, recording
// history in st; otherwise st itself.
func (a *App) quotaStore(ctx context.Context, st *store, loc *time.Location) (quota.Store, func(), error) {
	if a.cfg.Redis.URL == "" {
		return st, func() {}, nil
	}
	rdb, err := redis.NewClient(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("quota store: %w", err)
	}
	a.log.Info("regeneration quota counted in redis")
	return quota.NewRedisStore(rdb, loc, st), func() { _ = rdb.Close() }, nil
}

// Migrate moves the schema up to the latest version, or down by steps.
func (a *App) Migrate(ctx context.Context, down bool, steps int) error {
	switch a.cfg.DB.Driver {
	case "postgres":
		if err := pg.WaitForDB(ctx, a.cfg.DB.URL, pg.DefaultWaitOptions()); err != nil {
			return err
		}
		if down {
			return pg.RollbackMigrations(a.cfg.DB.URL, migrations.FS, migrations.PostgresDir, steps)
		}
		info, err := pg.ApplyMigrations(a.cfg.DB.URL, migrations.FS, migrations.PostgresDir)
		if err != nil {
			return err
		}
		a.log.Info("migrated", slog.Uint64("from", uint64(info.CurrentVersion)), slog.Uint64("to", uint64(info.FinalVersion)))
		return nil

	default:
		db, err := sqlite.Open(ctx, a.cfg.DB.SQLitePath, sqlite.DefaultOptions())
		if err != nil {
			return err
		}
		defer db.Close()
		if down {
			err = sqlite.RollbackMigrations(db, migrations.FS, migrations.SQLiteDir, steps)
		} else {
			err = sqlite.ApplyMigrations(db, migrations.FS, migrations.SQLiteDir)
		}
		if err != nil {
			return err
		}
		v, dirty, err := sqlite.MigrationVersion(db, migrations.FS, migrations.SQLiteDir)
		if err != nil {
			return err
		}
		a.log.Info("migrated", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
		return nil
	}
}
