// Package storage provides the durable local cache of remote data: a sqlite
// database holding projects, sections, labels, tasks and task-label links,
// each keyed by a local uuid with a unique (backend_uuid, remote_id) mapping.
package storage

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repository functions can
// run standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store wraps the shared database connection. The connection is the only
// shared mutable resource in the process; callers serialize logical
// operations through Lock/Unlock and must never hold the lock across a
// network call.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and initializes the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: sqlite serializes writers anyway, and the
	// foreign_keys pragma is per-connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the database tables and unique indexes if they don't exist
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS backends (
			uuid TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			is_enabled INTEGER NOT NULL DEFAULT 1,
			credentials TEXT NOT NULL DEFAULT '{}',
			settings TEXT NOT NULL DEFAULT '{}'
		);

		CREATE TABLE IF NOT EXISTS projects (
			uuid TEXT PRIMARY KEY,
			backend_uuid TEXT NOT NULL REFERENCES backends(uuid) ON DELETE CASCADE,
			remote_id TEXT NOT NULL,
			name TEXT NOT NULL,
			is_favorite INTEGER NOT NULL DEFAULT 0,
			is_inbox_project INTEGER NOT NULL DEFAULT 0,
			order_index INTEGER NOT NULL DEFAULT 0,
			parent_uuid TEXT REFERENCES projects(uuid) ON DELETE SET NULL
		);

		CREATE TABLE IF NOT EXISTS sections (
			uuid TEXT PRIMARY KEY,
			backend_uuid TEXT NOT NULL REFERENCES backends(uuid) ON DELETE CASCADE,
			remote_id TEXT NOT NULL,
			project_uuid TEXT NOT NULL REFERENCES projects(uuid) ON DELETE CASCADE,
			name TEXT NOT NULL,
			order_index INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS labels (
			uuid TEXT PRIMARY KEY,
			backend_uuid TEXT NOT NULL REFERENCES backends(uuid) ON DELETE CASCADE,
			remote_id TEXT NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS tasks (
			uuid TEXT PRIMARY KEY,
			backend_uuid TEXT NOT NULL REFERENCES backends(uuid) ON DELETE CASCADE,
			remote_id TEXT NOT NULL,
			content TEXT NOT NULL,
			description TEXT,
			project_uuid TEXT NOT NULL REFERENCES projects(uuid) ON DELETE CASCADE,
			section_uuid TEXT REFERENCES sections(uuid) ON DELETE SET NULL,
			parent_uuid TEXT REFERENCES tasks(uuid) ON DELETE CASCADE,
			priority INTEGER NOT NULL DEFAULT 1,
			order_index INTEGER NOT NULL DEFAULT 0,
			due_date TEXT,
			due_datetime TEXT,
			is_recurring INTEGER NOT NULL DEFAULT 0,
			deadline TEXT,
			duration TEXT,
			is_completed INTEGER NOT NULL DEFAULT 0,
			is_deleted INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS task_labels (
			task_uuid TEXT NOT NULL REFERENCES tasks(uuid) ON DELETE CASCADE,
			label_uuid TEXT NOT NULL REFERENCES labels(uuid) ON DELETE CASCADE,
			PRIMARY KEY (task_uuid, label_uuid)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_backend_remote ON projects(backend_uuid, remote_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sections_backend_remote ON sections(backend_uuid, remote_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_labels_backend_remote ON labels(backend_uuid, remote_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_backend_remote ON tasks(backend_uuid, remote_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_uuid);
		CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
	`

	// Foreign keys are off by default in sqlite
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	_, err := s.db.Exec(schema)
	return err
}

// Lock acquires exclusive access to the connection for one logical operation.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases exclusive access.
func (s *Store) Unlock() {
	s.mu.Unlock()
}

// DB returns the underlying connection. Callers must hold the store lock.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BeginTx starts a local transaction. Callers must hold the store lock for
// the transaction's whole lifetime.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Scan helpers
// =============================================================================

// nullStr converts an optional string to its sql representation
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// strPtr converts a scanned nullable string back to an optional string
func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullUUID converts an optional uuid to its sql representation
func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

// uuidPtr converts a scanned nullable uuid string back to an optional uuid
func uuidPtr(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
