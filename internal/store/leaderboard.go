package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/trivia/internal/codec"
	"github.com/roach88/trivia/internal/model"
)

const leaderboardColumns = `user_id, current_streak, total_correct, total_answered, total_points,
	last_answered_at, last_question_key, first_correct_at, answer_history`

// Leaderboard returns every entry keyed by user id.
// Returns an empty map (not nil) when the table is empty.
func (s *Store) Leaderboard(ctx context.Context) (map[string]model.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+leaderboardColumns+` FROM leaderboard ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]model.LeaderboardEntry)
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, err
		}
		entries[e.UserID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}

// LeaderboardEntry returns a single user's entry and whether it exists.
func (s *Store) LeaderboardEntry(ctx context.Context, userID string) (model.LeaderboardEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leaderboardColumns+` FROM leaderboard WHERE user_id = ?`, userID)
	e, err := scanLeaderboardEntry(row)
	if err == sql.ErrNoRows {
		return model.LeaderboardEntry{}, false, nil
	}
	if err != nil {
		return model.LeaderboardEntry{}, false, err
	}
	return e, true, nil
}

// ReplaceLeaderboard deletes every leaderboard row and inserts entries in a
// single transaction. Callers read-modify-write the whole map; the map key
// is authoritative for the user id.
func (s *Store) ReplaceLeaderboard(ctx context.Context, entries map[string]model.LeaderboardEntry) error {
	return s.withTx(ctx, "replace leaderboard", func(tx *sql.Tx) error {
		return replaceLeaderboardTx(ctx, tx, entries)
	})
}

func replaceLeaderboardTx(ctx context.Context, tx *sql.Tx, entries map[string]model.LeaderboardEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard`); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO leaderboard (`+leaderboardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	// Deterministic insert order keeps rowids stable across identical writes.
	users := make([]string, 0, len(entries))
	for u := range entries {
		users = append(users, u)
	}
	sort.Strings(users)

	for _, u := range users {
		e := entries[u]
		history := e.AnswerHistory
		if history == nil {
			history = []model.AnswerRecord{}
		}
		blob, err := codec.Compress(history)
		if err != nil {
			return fmt.Errorf("user %s: %w", u, err)
		}
		_, err = stmt.ExecContext(ctx,
			u,
			e.CurrentStreak,
			e.TotalCorrect,
			e.TotalAnswered,
			e.TotalPoints,
			nullTime(e.LastAnsweredAt),
			nullString(e.LastQuestionKey),
			nullTime(e.FirstCorrectAt),
			blob,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", u, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeaderboardEntry(r rowScanner) (model.LeaderboardEntry, error) {
	var (
		e                                   model.LeaderboardEntry
		lastAnswered, lastKey, firstCorrect sql.NullString
		history                             []byte
	)
	err := r.Scan(
		&e.UserID, &e.CurrentStreak, &e.TotalCorrect, &e.TotalAnswered, &e.TotalPoints,
		&lastAnswered, &lastKey, &firstCorrect, &history,
	)
	if err == sql.ErrNoRows {
		return e, err
	}
	if err != nil {
		return e, fmt.Errorf("scan leaderboard entry: %w", err)
	}

	if e.LastAnsweredAt, err = scanNullTime(lastAnswered); err != nil {
		return e, fmt.Errorf("leaderboard %s: last_answered_at: %w", e.UserID, err)
	}
	if e.FirstCorrectAt, err = scanNullTime(firstCorrect); err != nil {
		return e, fmt.Errorf("leaderboard %s: first_correct_at: %w", e.UserID, err)
	}
	e.LastQuestionKey = lastKey.String

	e.AnswerHistory = []model.AnswerRecord{}
	if len(history) > 0 {
		if err := codec.Decompress(history, &e.AnswerHistory); err != nil {
			return e, fmt.Errorf("leaderboard %s: answer_history: %w", e.UserID, err)
		}
		if e.AnswerHistory == nil {
			e.AnswerHistory = []model.AnswerRecord{}
		}
	}
	return e, nil
}
