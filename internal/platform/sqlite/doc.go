// Package sqlite opens the embedded SQLite database (modernc.org/sqlite,
// no cgo), applies golang-migrate migrations from an fs.FS and runs work in
// transactions.
//
// Connection settings are passed as _pragma DSN parameters so that every
// pooled connection gets them, not only the first one:
//
//	db, err := sqlite.Open(ctx, "data/smartnotes.db", sqlite.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	if err := sqlite.ApplyMigrations(db, migrations.FS, migrations.SQLiteDir); err != nil {
//	    return err
//	}
//
// Repositories take a *TxRunner and call GetQuerier(ctx) for every query, so
// the same code runs inside and outside WithinTx / WithinImmediateTx.
package sqlite
