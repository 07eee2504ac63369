package store

import (
	"context"
	"fmt"
	"time"
)

type PruneResult struct {
	Bookmarks   int64
	Evaluations int64
}

// PruneBefore deletes ledger rows recorded strictly before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (PruneResult, error) {
	cutoffUnix := cutoff.UTC().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PruneResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var result PruneResult
	res, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE created_at_unix < ?`, cutoffUnix)
	if err != nil {
		return PruneResult{}, fmt.Errorf("prune bookmarks: %w", err)
	}
	result.Bookmarks, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM evaluations WHERE created_at_unix < ?`, cutoffUnix)
	if err != nil {
		return PruneResult{}, fmt.Errorf("prune evaluations: %w", err)
	}
	result.Evaluations, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return PruneResult{}, fmt.Errorf("commit prune: %w", err)
	}
	return result, nil
}
