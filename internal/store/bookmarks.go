package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	BookmarkStatusPosted = "posted"
	BookmarkStatusFailed = "failed"
)

var ErrInvalidBookmark = errors.New("invalid bookmark input")

type Bookmark struct {
	ID           string
	Connector    string
	ChatID       string
	URI          string
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}

type RecordBookmarkInput struct {
	Connector    string
	ChatID       string
	URI          string
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}

type ListBookmarksInput struct {
	ChatID string
	Status string
	Limit  int
}

func (s *Store) RecordBookmark(ctx context.Context, input RecordBookmarkInput) (Bookmark, error) {
	uri := strings.TrimSpace(input.URI)
	chatID := strings.TrimSpace(input.ChatID)
	if uri == "" || chatID == "" {
		return Bookmark{}, ErrInvalidBookmark
	}
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if status != BookmarkStatusPosted && status != BookmarkStatusFailed {
		return Bookmark{}, fmt.Errorf("%w: status %q", ErrInvalidBookmark, input.Status)
	}
	record := Bookmark{
		ID:           "bkm_" + uuid.NewString(),
		Connector:    strings.ToLower(strings.TrimSpace(input.Connector)),
		ChatID:       chatID,
		URI:          uri,
		Status:       status,
		ErrorMessage: strings.TrimSpace(input.ErrorMessage),
		CreatedAt:    createdAtOrNow(input.CreatedAt),
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO bookmarks (id, connector, chat_id, uri, status, error_message, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Connector,
		record.ChatID,
		record.URI,
		record.Status,
		nullIfEmpty(record.ErrorMessage),
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return Bookmark{}, fmt.Errorf("insert bookmark: %w", err)
	}
	record.CreatedAt = time.Unix(record.CreatedAt.Unix(), 0).UTC()
	return record, nil
}

// ListBookmarks returns the newest bookmarks first.
func (s *Store) ListBookmarks(ctx context.Context, input ListBookmarksInput) ([]Bookmark, error) {
	limit := clampLimit(input.Limit)
	whereParts := []string{"1=1"}
	args := make([]any, 0, 3)
	if chatID := strings.TrimSpace(input.ChatID); chatID != "" {
		whereParts = append(whereParts, "chat_id = ?")
		args = append(args, chatID)
	}
	if status := strings.ToLower(strings.TrimSpace(input.Status)); status != "" {
		whereParts = append(whereParts, "status = ?")
		args = append(args, status)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, connector, chat_id, uri, status, COALESCE(error_message, ''), created_at_unix
		 FROM bookmarks
		 WHERE `+strings.Join(whereParts, " AND ")+`
		 ORDER BY created_at_unix DESC, rowid DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	results := make([]Bookmark, 0, limit)
	for rows.Next() {
		var record Bookmark
		var createdUnix int64
		if err := rows.Scan(
			&record.ID,
			&record.Connector,
			&record.ChatID,
			&record.URI,
			&record.Status,
			&record.ErrorMessage,
			&createdUnix,
		); err != nil {
			return nil, fmt.Errorf("scan bookmark row: %w", err)
		}
		record.CreatedAt = time.Unix(createdUnix, 0).UTC()
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}
	return results, nil
}
