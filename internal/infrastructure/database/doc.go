// Package database provides SQLite connectivity for the bridge's command journal.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Forward-only schema migrations read from an fs.FS
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements and the file is created 0600.
package database
