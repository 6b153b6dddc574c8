package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/trivia/internal/model"
)

// InsertFactIfAbsent stores f unless its key already exists.
// Returns inserted=false for an existing key; the stored row is unchanged.
func (s *Store) InsertFactIfAbsent(ctx context.Context, f model.DailyFact) (bool, error) {
	n, err := s.InsertFacts(ctx, []model.DailyFact{f})
	return n == 1, err
}

// InsertFacts inserts each fact with first-write-wins semantics in a single
// transaction and returns how many rows were new.
func (s *Store) InsertFacts(ctx context.Context, facts []model.DailyFact) (int, error) {
	var inserted int
	err := s.withTx(ctx, "insert facts", func(tx *sql.Tx) error {
		var err error
		inserted, err = insertFactsTx(ctx, tx, facts)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertFactsTx(ctx context.Context, tx *sql.Tx, facts []model.DailyFact) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_facts (key, fact, timestamp)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, f := range facts {
		if f.Key == "" {
			return 0, fmt.Errorf("fact key is required")
		}
		exists, err := keyExists(ctx, tx, "daily_facts", f.Key)
		if err != nil {
			return 0, err
		}
		if exists {
			continue
		}
		if _, err := stmt.ExecContext(ctx, f.Key, f.Fact, formatTime(f.Timestamp)); err != nil {
			return 0, fmt.Errorf("%s: %w", f.Key, err)
		}
		inserted++
	}
	return inserted, nil
}

// DailyFacts returns all facts newest-first.
// Returns an empty slice (not nil) if none exist.
func (s *Store) DailyFacts(ctx context.Context) ([]model.DailyFact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, fact, timestamp FROM daily_facts ORDER BY key DESC`)
	if err != nil {
		return nil, fmt.Errorf("query daily facts: %w", err)
	}
	defer rows.Close()

	facts := []model.DailyFact{}
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily facts: %w", err)
	}
	return facts, nil
}

// DailyFact returns the fact stored under key and whether it exists.
func (s *Store) DailyFact(ctx context.Context, key string) (model.DailyFact, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT key, fact, timestamp FROM daily_facts WHERE key = ?`, key)
	f, err := scanFact(row)
	if err == sql.ErrNoRows {
		return model.DailyFact{}, false, nil
	}
	if err != nil {
		return model.DailyFact{}, false, err
	}
	return f, true, nil
}

func scanFact(r rowScanner) (model.DailyFact, error) {
	var f model.DailyFact
	var ts string
	if err := r.Scan(&f.Key, &f.Fact, &ts); err != nil {
		if err == sql.ErrNoRows {
			return f, err
		}
		return f, fmt.Errorf("scan daily fact: %w", err)
	}
	t, err := parseTime(ts)
	if err != nil {
		return f, fmt.Errorf("daily fact %s: %w", f.Key, err)
	}
	f.Timestamp = t
	return f, nil
}

// keyExists reports whether table already holds a row for key. Keyed tables
// are first-write-wins: callers skip the insert when this returns true.
func keyExists(ctx context.Context, tx *sql.Tx, table, key string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE key = ?`, key).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("lookup %s %s: %w", table, key, err)
	}
	return true, nil
}
