// Package store keeps the sqlite ledger of bookmark posts and code
// evaluations made by the chat handlers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookmarks (
			id TEXT PRIMARY KEY,
			connector TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			uri TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_chat ON bookmarks(chat_id, created_at_unix);`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			connector TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			language TEXT,
			source_bytes INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			error_message TEXT,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_chat ON evaluations(chat_id, created_at_unix);`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 100
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func createdAtOrNow(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
