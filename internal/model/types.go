package model

import (
	"fmt"
	"time"
)

// DefaultHistoryLimit bounds AnswerHistory to the most recent answers.
const DefaultHistoryLimit = 30

// Label identifies one of the three answer options.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
)

// Labels lists the valid option labels in display order.
var Labels = []Label{LabelA, LabelB, LabelC}

// Valid reports whether l is one of A, B or C.
func (l Label) Valid() bool {
	switch l {
	case LabelA, LabelB, LabelC:
		return true
	}
	return false
}

// AnswerRecord is one entry of a user's answer history. QuestionKey is empty
// for records written before keys were tracked per answer.
type AnswerRecord struct {
	Date        string    `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
	WasCorrect  bool      `json:"was_correct"`
	QuestionKey string    `json:"question_key,omitempty"`
}

// Answered reports whether key was credited to e, either as the most recent
// question or anywhere in the retained history.
func (e LeaderboardEntry) Answered(key string) bool {
	if key == "" {
		return false
	}
	if e.LastQuestionKey == key {
		return true
	}
	for _, rec := range e.AnswerHistory {
		if rec.QuestionKey == key {
			return true
		}
	}
	return false
}

// LeaderboardEntry holds a single user's scoring state.
//
// Counters never decrease except CurrentStreak, which resets to 0 on an
// incorrect answer.
type LeaderboardEntry struct {
	UserID          string         `json:"user_id"`
	CurrentStreak   int            `json:"current_streak"`
	TotalCorrect    int            `json:"total_correct"`
	TotalAnswered   int            `json:"total_answered"`
	TotalPoints     int            `json:"total_points"`
	LastAnsweredAt  *time.Time     `json:"last_answered_at,omitempty"`
	LastQuestionKey string         `json:"last_question_key,omitempty"`
	FirstCorrectAt  *time.Time     `json:"first_correct_at,omitempty"`
	AnswerHistory   []AnswerRecord `json:"answer_history"`
}

// AppendHistory adds rec to the history and evicts the oldest entries so that
// at most limit remain. A non-positive limit uses DefaultHistoryLimit.
func (e *LeaderboardEntry) AppendHistory(rec AnswerRecord, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	e.AnswerHistory = append(e.AnswerHistory, rec)
	if over := len(e.AnswerHistory) - limit; over > 0 {
		trimmed := make([]AnswerRecord, limit)
		copy(trimmed, e.AnswerHistory[over:])
		e.AnswerHistory = trimmed
	}
}

// Clone returns a deep copy so callers can mutate without aliasing the
// original history slice or timestamps.
func (e LeaderboardEntry) Clone() LeaderboardEntry {
	out := e
	if e.LastAnsweredAt != nil {
		t := *e.LastAnsweredAt
		out.LastAnsweredAt = &t
	}
	if e.FirstCorrectAt != nil {
		t := *e.FirstCorrectAt
		out.FirstCorrectAt = &t
	}
	out.AnswerHistory = append([]AnswerRecord(nil), e.AnswerHistory...)
	return out
}

// DailyFact is a "did you know" fact, keyed by a timestamp string.
type DailyFact struct {
	Key       string    `json:"key"`
	Fact      string    `json:"fact"`
	Timestamp time.Time `json:"timestamp"`
}

// TriviaQuestion is one day's multiple-choice question.
type TriviaQuestion struct {
	Key           string           `json:"key"`
	Question      string           `json:"question"`
	Options       map[Label]string `json:"options"`
	CorrectAnswer Label            `json:"correct_answer"`
	Explanation   string           `json:"explanation"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Validate checks the structural invariants of a question: a non-empty key
// and text, exactly the three labelled options, and a correct answer that
// names one of them.
func (q TriviaQuestion) Validate() error {
	if q.Key == "" {
		return fmt.Errorf("question key is required")
	}
	if q.Question == "" {
		return fmt.Errorf("question %s: text is required", q.Key)
	}
	if len(q.Options) != len(Labels) {
		return fmt.Errorf("question %s: expected %d options, got %d", q.Key, len(Labels), len(q.Options))
	}
	for _, l := range Labels {
		if _, ok := q.Options[l]; !ok {
			return fmt.Errorf("question %s: missing option %s", q.Key, l)
		}
	}
	if !q.CorrectAnswer.Valid() {
		return fmt.Errorf("question %s: invalid correct answer %q", q.Key, q.CorrectAnswer)
	}
	return nil
}

// Snapshot is the full store contents serialized into one artifact.
type Snapshot struct {
	SnapshotID      string                      `json:"snapshot_id,omitempty"`
	Leaderboard     map[string]LeaderboardEntry `json:"leaderboard"`
	DailyFacts      map[string]DailyFact        `json:"daily_facts"`
	TriviaQuestions map[string]TriviaQuestion   `json:"trivia_questions"`
	ExportedAt      time.Time                   `json:"exported_at"`
}
