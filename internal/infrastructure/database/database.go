package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

const (
	dirMode  = 0o750
	fileMode = 0o600

	pingTimeout = 5 * time.Second
)

// Config describes the journal database file.
type Config struct {
	// Path is the SQLite file. Missing parent directories are created.
	Path string

	// WALMode lets API reads run alongside journal writes.
	WALMode bool

	// BusyTimeout is how long a statement waits on a locked database.
	BusyTimeout time.Duration
}

// DB is the journal's SQLite handle. The embedded *sql.DB is used directly
// for queries.
type DB struct {
	*sql.DB
}

// Open creates the file if needed, pins the pool to a single connection and
// pings it. The file is restricted to its owner.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Path, err)
	}

	// SQLite has one writer; a single pooled connection serialises the
	// journal's inserts instead of surfacing SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("opening database %s: %w", cfg.Path, err)
	}

	if err := os.Chmod(cfg.Path, fileMode); err != nil && !os.IsNotExist(err) {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("restricting %s: %w", cfg.Path, err)
	}

	return &DB{DB: sqlDB}, nil
}

// dsn builds the go-sqlite3 connection string.
func dsn(cfg Config) string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10))
	q.Set("_foreign_keys", "on")
	if cfg.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// Close releases the connection pool. A zero DB closes cleanly.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
