// Package database provides SQLite connectivity for the Workbench printer
// registry.
//
// This package manages:
//   - The connection, pinned to a single writer with WAL enabled
//   - Embedded, versioned schema migrations tracked in schema_migrations
//   - Transaction helpers used by repositories that need atomic multi-row writes
//
// All queries use parameterised statements and the database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql and
// live in the top-level migrations package, which registers them with
// MigrationsFS at init time.
package database
