package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ledger/internal/docstore"

	_ "modernc.org/sqlite"
)

const DefaultKey = "appdata"

const (
	selectDocument = `SELECT body FROM documents WHERE key = ?`
	upsertDocument = `INSERT INTO documents (key, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
)

var _ docstore.Store = (*Store)(nil)

// Store keeps the document blob as one row of the documents table.
type Store struct {
	db  *sql.DB
	key string
}

func NewStore(dbPath, key string) (*Store, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, key: key}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, selectDocument, s.key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document %q: %w", s.key, err)
	}
	return []byte(body), nil
}

func (s *Store) Replace(ctx context.Context, body []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertDocument, s.key, string(body)); err != nil {
		return fmt.Errorf("upsert document %q: %w", s.key, err)
	}
	slog.DebugContext(ctx, "Document written to SQLite", "key", s.key, "bytes", len(body))
	return nil
}
