/*
Package sqlite provides a SQLite-backed audit trail.

PURPOSE:
  Implements generic.AuditLog. Feature state itself is in-memory and does
  not survive a restart; the audit trail records every write operation the
  call boundary dispatched (who, what, when, outcome) so it can be
  inspected while the process runs, or after it if a file path is used.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on audit_entries
  - No DELETE statements on audit_entries

KEY TABLES:
  audit_entries: One row per dispatched write

INDEXES:
  - idx_audit_caller_time: per-caller history (hot path for /api/audit?caller=)
  - idx_audit_action:      filtering by action

CONCURRENCY:
  Uses sync.RWMutex around the pool. ":memory:" databases are pinned to a
  single connection, otherwise every pooled connection would see its own
  empty database.

USAGE:
  audit, err := sqlite.New(":memory:")
  if err != nil {
      log.Fatal(err)
  }
  defer audit.Close()

SEE ALSO:
  - generic/store.go: AuditLog interface
  - api/handlers.go: records entries after each write
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/learnify/state-engine/generic"
	_ "github.com/mattn/go-sqlite3"
)

const memoryPath = ":memory:"

// Store implements generic.AuditLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.AuditLog = (*Store)(nil)

// New creates a new SQLite audit store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL"
	if dbPath == memoryPath {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryPath {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		caller TEXT NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_caller_time
		ON audit_entries(caller, timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_action
		ON audit_entries(action);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

// Append records an entry. A missing ID is filled with a random UUID and a
// zero Timestamp with the current time.
func (s *Store) Append(ctx context.Context, entry generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_entries (id, timestamp, caller, action, outcome, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(entry.Caller),
		string(entry.Action),
		entry.Outcome,
		string(payloadJSON),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.NewError(generic.ErrAlreadyExists, "audit entry already recorded")
		}
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Query returns entries matching filter, oldest first.
func (s *Store) Query(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Caller != nil {
		where = append(where, "caller = ?")
		args = append(args, string(*filter.Caller))
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		where = append(where, "action IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if filter.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}

	query := `SELECT id, timestamp, caller, action, outcome, payload_json FROM audit_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&n)
	return n, err
}

func scanEntry(rows *sql.Rows) (generic.AuditEntry, error) {
	var (
		e                         generic.AuditEntry
		timestamp, caller, action string
		payloadJSON               sql.NullString
	)
	if err := rows.Scan(&e.ID, &timestamp, &caller, &action, &e.Outcome, &payloadJSON); err != nil {
		return generic.AuditEntry{}, fmt.Errorf("failed to scan audit entry: %w", err)
	}

	e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
	e.Caller = generic.Identity(caller)
	e.Action = generic.AuditAction(action)
	if payloadJSON.Valid && payloadJSON.String != "" && payloadJSON.String != "null" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
			return generic.AuditEntry{}, fmt.Errorf("failed to decode audit payload: %w", err)
		}
	}
	return e, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
