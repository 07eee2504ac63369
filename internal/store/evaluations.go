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
	EvaluationOutcomeOK          = "ok"
	EvaluationOutcomeError       = "error"
	EvaluationOutcomeRateLimited = "rate_limited"
)

var ErrInvalidEvaluation = errors.New("invalid evaluation input")

type Evaluation struct {
	ID           string
	Connector    string
	ChatID       string
	Language     string
	SourceBytes  int
	Outcome      string
	ErrorMessage string
	CreatedAt    time.Time
}

type RecordEvaluationInput struct {
	Connector    string
	ChatID       string
	Language     string
	SourceBytes  int
	Outcome      string
	ErrorMessage string
	CreatedAt    time.Time
}

type ListEvaluationsInput struct {
	ChatID  string
	Outcome string
	Limit   int
}

func (s *Store) RecordEvaluation(ctx context.Context, input RecordEvaluationInput) (Evaluation, error) {
	chatID := strings.TrimSpace(input.ChatID)
	if chatID == "" {
		return Evaluation{}, ErrInvalidEvaluation
	}
	outcome := strings.ToLower(strings.TrimSpace(input.Outcome))
	switch outcome {
	case EvaluationOutcomeOK, EvaluationOutcomeError, EvaluationOutcomeRateLimited:
	default:
		return Evaluation{}, fmt.Errorf("%w: outcome %q", ErrInvalidEvaluation, input.Outcome)
	}
	sourceBytes := input.SourceBytes
	if sourceBytes < 0 {
		sourceBytes = 0
	}
	record := Evaluation{
		ID:           "evl_" + uuid.NewString(),
		Connector:    strings.ToLower(strings.TrimSpace(input.Connector)),
		ChatID:       chatID,
		Language:     strings.TrimSpace(input.Language),
		SourceBytes:  sourceBytes,
		Outcome:      outcome,
		ErrorMessage: strings.TrimSpace(input.ErrorMessage),
		CreatedAt:    createdAtOrNow(input.CreatedAt),
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO evaluations (id, connector, chat_id, language, source_bytes, outcome, error_message, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Connector,
		record.ChatID,
		nullIfEmpty(record.Language),
		record.SourceBytes,
		record.Outcome,
		nullIfEmpty(record.ErrorMessage),
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return Evaluation{}, fmt.Errorf("insert evaluation: %w", err)
	}
	record.CreatedAt = time.Unix(record.CreatedAt.Unix(), 0).UTC()
	return record, nil
}

func (s *Store) ListEvaluations(ctx context.Context, input ListEvaluationsInput) ([]Evaluation, error) {
	limit := clampLimit(input.Limit)
	whereParts := []string{"1=1"}
	args := make([]any, 0, 3)
	if chatID := strings.TrimSpace(input.ChatID); chatID != "" {
		whereParts = append(whereParts, "chat_id = ?")
		args = append(args, chatID)
	}
	if outcome := strings.ToLower(strings.TrimSpace(input.Outcome)); outcome != "" {
		whereParts = append(whereParts, "outcome = ?")
		args = append(args, outcome)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, connector, chat_id, COALESCE(language, ''), source_bytes, outcome, COALESCE(error_message, ''), created_at_unix
		 FROM evaluations
		 WHERE `+strings.Join(whereParts, " AND ")+`
		 ORDER BY created_at_unix DESC, rowid DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	results := make([]Evaluation, 0, limit)
	for rows.Next() {
		var record Evaluation
		var createdUnix int64
		if err := rows.Scan(
			&record.ID,
			&record.Connector,
			&record.ChatID,
			&record.Language,
			&record.SourceBytes,
			&record.Outcome,
			&record.ErrorMessage,
			&createdUnix,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}
		record.CreatedAt = time.Unix(createdUnix, 0).UTC()
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return results, nil
}
