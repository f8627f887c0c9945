package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/taskboard/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveSession replaces the persisted identity record.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess model.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id must not be empty")
	}
	if sess.Role == "" {
		sess.Role = model.RoleUser
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO session (slot, id, username, email, role, saved_at)
		VALUES (1, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Username, sess.Email, sess.Role, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	return nil
}

// LoadSession returns the persisted identity record, or ErrNoSession.
func (s *SQLiteStore) LoadSession(ctx context.Context) (model.Session, error) {
	var sess model.Session
	err := s.db.GetContext(ctx, &sess,
		"SELECT id, username, email, role FROM session WHERE slot = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNoSession
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// ClearSession removes the persisted identity record.
func (s *SQLiteStore) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session"); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// SaveTasks replaces the task snapshot with tasks, keeping their order.
func (s *SQLiteStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM task_snapshot"); err != nil {
		return fmt.Errorf("clearing task snapshot: %w", err)
	}

	const query = `
		INSERT OR REPLACE INTO task_snapshot (id, position, status, updated_at, data)
		VALUES (?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing snapshot statement: %w", err)
	}
	defer stmt.Close()

	for i, t := range tasks {
		if !t.Status.Valid() {
			continue
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshaling task %s: %w", t.ID, err)
		}
		_, err = stmt.ExecContext(ctx, t.ID, i, string(t.Status), t.UpdatedAt.UTC(), string(data))
		if err != nil {
			return fmt.Errorf("saving task %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// LoadTasks returns the task snapshot in saved order.
func (s *SQLiteStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	var rows []string
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT data FROM task_snapshot ORDER BY position"); err != nil {
		return nil, fmt.Errorf("querying task snapshot: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, data := range rows {
		var t model.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("unmarshaling snapshot task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// ClearTasks empties the task snapshot.
func (s *SQLiteStore) ClearTasks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM task_snapshot"); err != nil {
		return fmt.Errorf("clearing task snapshot: %w", err)
	}
	return nil
}
