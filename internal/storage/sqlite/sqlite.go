package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"lendingdesk/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteDB stores documents in a single SQLite file.
// Used for single-node deployments and by the admin CLI.
type SQLiteDB struct {
	db *sqlx.DB
}

// NewSQLiteDB opens (or creates) the database file at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteDB{db: db}, nil
}

// Initialize applies the embedded schema
func (s *SQLiteDB) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Get(ctx context.Context, collection storage.Collection, id string) ([]byte, error) {
	var body string
	err := s.db.GetContext(ctx, &body,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, string(collection), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return []byte(body), nil
}

func (s *SQLiteDB) Put(ctx context.Context, collection storage.Collection, id string, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(collection), id, string(doc), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLiteDB) Delete(ctx context.Context, collection storage.Collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, string(collection), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) List(ctx context.Context, collection storage.Collection) ([][]byte, error) {
	var bodies []string
	err := s.db.SelectContext(ctx, &bodies,
		`SELECT body FROM documents WHERE collection = ? ORDER BY id`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	docs := make([][]byte, 0, len(bodies))
	for _, b := range bodies {
		docs = append(docs, []byte(b))
	}
	return docs, nil
}

// Close closes the database
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
