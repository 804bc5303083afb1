package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Options holds connection pool and pragma settings.
type Options struct {
	// MaxOpenConns caps the pool. SQLite has one writer, so keep it small.
	MaxOpenConns int
	// MaxIdleConns is the number of connections kept open while idle.
	MaxIdleConns int
	// ConnMaxLifetime recycles connections; 0 keeps them forever.
	ConnMaxLifetime time.Duration
	// PingTimeout bounds the check done in Open.
	PingTimeout time.Duration
	// BusyTimeout is how long a connection waits on a locked database
	// before returning SQLITE_BUSY.
	BusyTimeout time.Duration
	// WALMode lets readers run while a write is in progress.
	WALMode bool
	// ForeignKeys enables ON DELETE CASCADE from notes to their rows.
	ForeignKeys bool
}

// DefaultOptions returns settings for an embedded single-writer database.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     5 * time.Second,
		WALMode:         true,
		ForeignKeys:     true,
	}
}

// Open opens (creating if needed) the database file at path and pings it.
// Pragmas from opts are applied to every pooled connection.
func Open(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	// The driver creates the file but not its directory.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", BuildDSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	// sql.Open is lazy; make sure the file is actually usable.
	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return db, nil
}

// OpenInMemory opens a private in-memory database. The pool is limited to a
// single connection that is never recycled, since each connection to
// :memory: is a separate database.
func OpenInMemory(ctx context.Context) (*sql.DB, error) {
	opts := DefaultOptions()
	opts.WALMode = false
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	opts.ConnMaxLifetime = 0
	return Open(ctx, ":memory:", opts)
}

// BuildDSN renders path and the pragma settings as a modernc DSN, e.g.
//
//	data/smartnotes.db?_pragma=busy_timeout%285000%29&_pragma=foreign_keys%281%29
func BuildDSN(path string, opts Options) string {
	q := url.Values{}
	if opts.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	if opts.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if opts.WALMode {
		// NORMAL is durable under WAL except across power loss.
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
