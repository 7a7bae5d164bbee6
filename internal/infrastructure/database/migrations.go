package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Migration filenames look like YYYYMMDD_HHMMSS_description.up.sql, with an
// optional matching .down.sql.
const (
	migrationFilenameParts = 3
	minVersionParts        = 2
)

// Migration represents a single schema migration.
type Migration struct {
	// Version is YYYYMMDD_HHMMSS, taken from the filename.
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies every migration in source that has not been applied yet,
// oldest first. Each migration runs in its own transaction: if one fails it is
// rolled back, earlier ones stay committed and re-running continues from it.
//
// source holds the .sql files at its root (see the migrations package).
func (db *DB) Migrate(ctx context.Context, source fs.FS) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	pending, err := db.pendingMigrations(ctx, source)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// SchemaVersion returns the newest applied migration version, or "" if none.
func (db *DB) SchemaVersion(ctx context.Context) (string, error) {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	return applied[len(applied)-1].Version, nil
}

func (db *DB) pendingMigrations(ctx context.Context, source fs.FS) ([]Migration, error) {
	all, err := LoadMigrations(source)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting applied migrations: %w", err)
	}

	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
	}

	var pending []Migration
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Written by applyMigration
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// LoadMigrations reads and pairs the migration files at the root of source,
// sorted oldest first. Files that don't follow the naming scheme are ignored.
func LoadMigrations(source fs.FS) ([]Migration, error) {
	if source == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	up := make(map[string]string)
	down := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, isUp, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		if isUp {
			up[version] = entry.Name()
		} else {
			down[version] = entry.Name()
		}
	}

	migrations := make([]Migration, 0, len(up))
	for version, upFile := range up {
		upSQL, err := fs.ReadFile(source, upFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", upFile, err)
		}
		m := Migration{
			Version: version,
			Name:    extractMigrationName(upFile),
			UpSQL:   string(upSQL),
		}
		if downFile, ok := down[version]; ok {
			downSQL, err := fs.ReadFile(source, downFile)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", downFile, err)
			}
			m.DownSQL = string(downSQL)
		}
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFilename extracts version and direction from a migration filename.
func parseMigrationFilename(name string) (version string, isUp bool, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return "", false, false
	}

	switch {
	case strings.HasSuffix(base, ".up"):
		isUp = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", false, false
	}

	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) < minVersionParts {
		return "", false, false
	}

	return parts[0] + "_" + parts[1], isUp, true
}

// extractMigrationName returns the description part of a filename.
// Example: "20261001_120000_command_journal.up.sql" -> "command_journal"
func extractMigrationName(filename string) string {
	base := strings.TrimSuffix(filename, ".sql")
	base = strings.TrimSuffix(base, ".up")
	base = strings.TrimSuffix(base, ".down")

	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) >= migrationFilenameParts {
		return parts[minVersionParts]
	}
	return base
}
