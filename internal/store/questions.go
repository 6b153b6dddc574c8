package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/trivia/internal/codec"
	"github.com/roach88/trivia/internal/model"
)

const questionColumns = `key, question, options, correct_answer, explanation, timestamp`

// InsertQuestionIfAbsent stores q unless its key already exists.
// Returns inserted=false for an existing key; the stored row is unchanged.
func (s *Store) InsertQuestionIfAbsent(ctx context.Context, q model.TriviaQuestion) (bool, error) {
	n, err := s.InsertQuestions(ctx, []model.TriviaQuestion{q})
	return n == 1, err
}

// InsertQuestions inserts each question with first-write-wins semantics in a
// single transaction and returns how many rows were new. Structurally
// invalid questions abort the whole call.
func (s *Store) InsertQuestions(ctx context.Context, questions []model.TriviaQuestion) (int, error) {
	var inserted int
	err := s.withTx(ctx, "insert questions", func(tx *sql.Tx) error {
		var err error
		inserted, err = insertQuestionsTx(ctx, tx, questions)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertQuestionsTx(ctx context.Context, tx *sql.Tx, questions []model.TriviaQuestion) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trivia_questions (`+questionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, err
		}
		exists, err := keyExists(ctx, tx, "trivia_questions", q.Key)
		if err != nil {
			return 0, err
		}
		if exists {
			continue
		}
		options, err := codec.Compress(q.Options)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", q.Key, err)
		}
		if _, err := stmt.ExecContext(ctx,
			q.Key, q.Question, options, string(q.CorrectAnswer), q.Explanation, formatTime(q.Timestamp)); err != nil {
			return 0, fmt.Errorf("%s: %w", q.Key, err)
		}
		inserted++
	}
	return inserted, nil
}

// TriviaQuestions returns all questions newest-first.
// Returns an empty slice (not nil) if none exist.
func (s *Store) TriviaQuestions(ctx context.Context) ([]model.TriviaQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionColumns+` FROM trivia_questions ORDER BY key DESC`)
	if err != nil {
		return nil, fmt.Errorf("query trivia questions: %w", err)
	}
	defer rows.Close()

	questions := []model.TriviaQuestion{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trivia questions: %w", err)
	}
	return questions, nil
}

// TriviaQuestion returns the question stored under key and whether it exists.
func (s *Store) TriviaQuestion(ctx context.Context, key string) (model.TriviaQuestion, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM trivia_questions WHERE key = ?`, key)
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return model.TriviaQuestion{}, false, nil
	}
	if err != nil {
		return model.TriviaQuestion{}, false, err
	}
	return q, true, nil
}

// LatestTriviaQuestion returns the question with the greatest key, which is
// the current day's question once it has been generated.
func (s *Store) LatestTriviaQuestion(ctx context.Context) (model.TriviaQuestion, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM trivia_questions ORDER BY key DESC LIMIT 1`)
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return model.TriviaQuestion{}, false, nil
	}
	if err != nil {
		return model.TriviaQuestion{}, false, err
	}
	return q, true, nil
}

func scanQuestion(r rowScanner) (model.TriviaQuestion, error) {
	var (
		q       model.TriviaQuestion
		options []byte
		answer  string
		ts      string
	)
	if err := r.Scan(&q.Key, &q.Question, &options, &answer, &q.Explanation, &ts); err != nil {
		if err == sql.ErrNoRows {
			return q, err
		}
		return q, fmt.Errorf("scan trivia question: %w", err)
	}
	q.CorrectAnswer = model.Label(answer)

	if err := codec.Decompress(options, &q.Options); err != nil {
		return q, fmt.Errorf("trivia question %s: options: %w", q.Key, err)
	}
	t, err := parseTime(ts)
	if err != nil {
		return q, fmt.Errorf("trivia question %s: %w", q.Key, err)
	}
	q.Timestamp = t
	return q, nil
}
