package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/trivia/internal/model"
)

// withTx runs fn in a transaction, committing on success.
// op prefixes every returned error.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// Snapshot reads all three record tables into one value keyed by record key.
// ExportedAt and SnapshotID are left for the caller to stamp.
func (s *Store) Snapshot(ctx context.Context) (model.Snapshot, error) {
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	facts, err := s.DailyFacts(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	questions, err := s.TriviaQuestions(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}

	snap := model.Snapshot{
		Leaderboard:     lb,
		DailyFacts:      make(map[string]model.DailyFact, len(facts)),
		TriviaQuestions: make(map[string]model.TriviaQuestion, len(questions)),
	}
	for _, f := range facts {
		snap.DailyFacts[f.Key] = f
	}
	for _, q := range questions {
		snap.TriviaQuestions[q.Key] = q
	}
	return snap, nil
}

// RestoreResult reports what Restore wrote.
type RestoreResult struct {
	Leaderboard     int `json:"leaderboard"`
	DailyFacts      int `json:"daily_facts"`
	TriviaQuestions int `json:"trivia_questions"`
}

// Restore applies a snapshot in one transaction: the leaderboard is
// replaced wholesale, facts and questions are inserted first-write-wins.
// On any failure nothing is written.
func (s *Store) Restore(ctx context.Context, snap model.Snapshot) (RestoreResult, error) {
	var r RestoreResult

	lb := make(map[string]model.LeaderboardEntry, len(snap.Leaderboard))
	for id, e := range snap.Leaderboard {
		e.UserID = id
		lb[id] = e
	}
	facts := make([]model.DailyFact, 0, len(snap.DailyFacts))
	for key, f := range snap.DailyFacts {
		f.Key = key
		facts = append(facts, f)
	}
	sort.Slice(facts, func(i, j int) bool { return facts[i].Key < facts[j].Key })
	questions := make([]model.TriviaQuestion, 0, len(snap.TriviaQuestions))
	for key, q := range snap.TriviaQuestions {
		q.Key = key
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Key < questions[j].Key })

	err := s.withTx(ctx, "restore snapshot", func(tx *sql.Tx) error {
		if err := replaceLeaderboardTx(ctx, tx, lb); err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
		n, err := insertFactsTx(ctx, tx, facts)
		if err != nil {
			return fmt.Errorf("daily facts: %w", err)
		}
		r.DailyFacts = n
		n, err = insertQuestionsTx(ctx, tx, questions)
		if err != nil {
			return fmt.Errorf("trivia questions: %w", err)
		}
		r.TriviaQuestions = n
		return nil
	})
	if err != nil {
		return RestoreResult{}, err
	}
	r.Leaderboard = len(lb)
	return r, nil
}
