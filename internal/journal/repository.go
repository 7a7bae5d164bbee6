// Package journal records every command the bridge handled in the
// command_journal table, for the status API and troubleshooting.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one journalled command.
type Entry struct {
	ID          string    `json:"id"`
	DeviceSlug  string    `json:"device"`
	ExternalID  string    `json:"external_id"`
	Kind        string    `json:"kind"`
	Payload     string    `json:"payload"`
	WireCommand string    `json:"wire_command,omitempty"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	DeviceSlug string // optional: one robot
	Kind       string // optional: power, cycle, night_light...
	Outcome    string // optional: sent, failed, skipped
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ListResult contains a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for journal operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the journal in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new journal repository. The schema must
// already be migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_journal
		   (id, device_slug, external_id, kind, payload, wire_command, outcome, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeviceSlug, e.ExternalID, e.Kind, e.Payload,
		nullableString(e.WireCommand), e.Outcome, nullableString(e.Error),
		e.DurationMS, e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings so they are stored as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.DeviceSlug != "" {
		conditions = append(conditions, "device_slug = ?")
		args = append(args, filter.DeviceSlug)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_journal %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, device_slug, external_id, kind, payload, wire_command, outcome, error, duration_ms, created_at
		 FROM command_journal %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var wire, errText sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.DeviceSlug, &e.ExternalID, &e.Kind, &e.Payload,
			&wire, &e.Outcome, &errText, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.WireCommand = wire.String
		e.Error = errText.String

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
