package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

const (
	kindProject   = "project"
	kindCaseStudy = "case_study"
)

var _ Catalog = (*SQLiteCatalog)(nil)

// SQLiteCatalog implements Catalog using SQLite. Records are stored as JSON
// and vectors as little-endian float32 blobs keyed by record and vector name.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT,
		body TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, id)
	);

	CREATE TABLE IF NOT EXISTS record_vectors (
		record_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (kind, record_id, name),
		FOREIGN KEY (kind, record_id) REFERENCES records(kind, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteCatalog) upsert(ctx context.Context, kind, id, title string, record any, vectors map[string][]float32) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, kind, title, body, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET title = excluded.title, body = excluded.body, updated_at = excluded.updated_at`,
		id, kind, title, string(body), time.Now(),
	)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM record_vectors WHERE kind = ? AND record_id = ?`, kind, id); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO record_vectors (record_id, kind, name, vector) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for name, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, kind, name, vector.EncodeVector(v)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type storedRecord struct {
	id      string
	body    string
	vectors map[string][]float32
}

// list returns all records of kind in insertion order with their vectors.
func (s *SQLiteCatalog) list(ctx context.Context, kind string) ([]storedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body FROM records WHERE kind = ? ORDER BY rowid`, kind,
	)
	if err != nil {
		return nil, err
	}
	var records []storedRecord
	pos := make(map[string]int)
	for rows.Next() {
		var r storedRecord
		if err := rows.Scan(&r.id, &r.body); err != nil {
			rows.Close()
			return nil, err
		}
		r.vectors = make(map[string][]float32)
		pos[r.id] = len(records)
		records = append(records, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := s.db.QueryContext(ctx,
		`SELECT record_id, name, vector FROM record_vectors WHERE kind = ?`, kind,
	)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var id, name string
		var blob []byte
		if err := vrows.Scan(&id, &name, &blob); err != nil {
			return nil, err
		}
		if i, ok := pos[id]; ok {
			records[i].vectors[name] = vector.DecodeVector(blob)
		}
	}
	return records, vrows.Err()
}

func (s *SQLiteCatalog) count(ctx context.Context, kind string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE kind = ?`, kind).Scan(&count)
	return count, err
}

// Projects returns a writer that persists projects.
func (s *SQLiteCatalog) Projects() vector.Writer[models.Project] {
	return projectWriter{s}
}

// CaseStudies returns a writer that persists case studies.
func (s *SQLiteCatalog) CaseStudies() vector.Writer[models.CaseStudy] {
	return caseStudyWriter{s}
}

type projectWriter struct{ s *SQLiteCatalog }

func (w projectWriter) Upsert(ctx context.Context, id string, p models.Project, vectors map[string][]float32) error {
	return w.s.upsert(ctx, kindProject, id, p.Title, p, vectors)
}

type caseStudyWriter struct{ s *SQLiteCatalog }

func (w caseStudyWriter) Upsert(ctx context.Context, id string, c models.CaseStudy, vectors map[string][]float32) error {
	return w.s.upsert(ctx, kindCaseStudy, id, c.Title, c, vectors)
}

// LoadProjects replays every stored project into w and returns how many were loaded.
func (s *SQLiteCatalog) LoadProjects(ctx context.Context, w vector.Writer[models.Project]) (int, error) {
	return replay(ctx, s, kindProject, w)
}

// LoadCaseStudies replays every stored case study into w and returns how many were loaded.
func (s *SQLiteCatalog) LoadCaseStudies(ctx context.Context, w vector.Writer[models.CaseStudy]) (int, error) {
	return replay(ctx, s, kindCaseStudy, w)
}

func replay[T any](ctx context.Context, s *SQLiteCatalog, kind string, w vector.Writer[T]) (int, error) {
	records, err := s.list(ctx, kind)
	if err != nil {
		return 0, err
	}
	for i, r := range records {
		var record T
		if err := json.Unmarshal([]byte(r.body), &record); err != nil {
			return i, fmt.Errorf("failed to unmarshal %s %s: %w", kind, r.id, err)
		}
		if err := w.Upsert(ctx, r.id, record, r.vectors); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

// CountProjects returns the number of stored projects.
func (s *SQLiteCatalog) CountProjects(ctx context.Context) (int64, error) {
	return s.count(ctx, kindProject)
}

// CountCaseStudies returns the number of stored case studies.
func (s *SQLiteCatalog) CountCaseStudies(ctx context.Context) (int64, error) {
	return s.count(ctx, kindCaseStudy)
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
