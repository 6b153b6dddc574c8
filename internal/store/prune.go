package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/trivia/internal/model"
)

// isoKeyGlob matches keys that start with a YYYY-MM-DD date. Keys that do not
// are never pruned.
const isoKeyGlob = `[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]*`

// DeleteFactsBefore deletes daily facts whose key date is strictly before
// cutoff's calendar date. Returns the number of rows deleted.
func (s *Store) DeleteFactsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteKeyedBefore(ctx, "daily_facts", cutoff)
}

// DeleteQuestionsBefore deletes trivia questions whose key date is strictly
// before cutoff's calendar date. Returns the number of rows deleted.
func (s *Store) DeleteQuestionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteKeyedBefore(ctx, "trivia_questions", cutoff)
}

func (s *Store) deleteKeyedBefore(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	// ISO dates compare lexicographically in chronological order.
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key GLOB ? AND substr(key, 1, 10) < ?`, table),
		isoKeyGlob, cutoff.Format(model.KeyDateLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune %s: rows affected: %w", table, err)
	}
	return n, nil
}

// DeleteIdleLeaderboard deletes entries whose last answer is strictly before
// cutoff. Entries that never answered are kept.
func (s *Store) DeleteIdleLeaderboard(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM leaderboard WHERE last_answered_at IS NOT NULL AND last_answered_at < ?`,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune leaderboard: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune leaderboard: rows affected: %w", err)
	}
	return n, nil
}
