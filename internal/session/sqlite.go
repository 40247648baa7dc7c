package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps state in a SQLite table so suspended conversations survive restarts.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string, ttl time.Duration) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; Take relies on DELETE ... RETURNING being serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS workflow_contexts (
		workflow_id TEXT PRIMARY KEY,
		state BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workflow_contexts_expires ON workflow_contexts(expires_at);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

// Type returns "sqlite".
func (s *SQLiteStore) Type() string { return "sqlite" }

// Save stores state under workflowID and purges expired rows.
func (s *SQLiteStore) Save(ctx context.Context, workflowID string, state []byte) error {
	now := s.now()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflow_contexts WHERE expires_at <= ?`, now.UnixNano()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_contexts (workflow_id, state, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(workflow_id) DO UPDATE SET state = excluded.state, expires_at = excluded.expires_at`,
		workflowID, state, now.Add(s.ttl).UnixNano(),
	)
	return err
}

// Take deletes the row for workflowID and returns its state if it had not expired.
func (s *SQLiteStore) Take(ctx context.Context, workflowID string) ([]byte, bool, error) {
	var state []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM workflow_contexts WHERE workflow_id = ? RETURNING state, expires_at`, workflowID,
	).Scan(&state, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expiresAt <= s.now().UnixNano() {
		return nil, false, nil
	}
	return state, true, nil
}

// Delete removes any state for workflowID.
func (s *SQLiteStore) Delete(ctx context.Context, workflowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflow_contexts WHERE workflow_id = ?`, workflowID)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
