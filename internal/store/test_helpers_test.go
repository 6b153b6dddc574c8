package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/trivia/internal/model"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustTime parses an RFC 3339 timestamp or fails the test.
func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts.UTC()
}

// createTestQuestion creates a valid question with the given key.
func createTestQuestion(key string, answer model.Label, ts time.Time) model.TriviaQuestion {
	return model.TriviaQuestion{
		Key:      key,
		Question: "Which planet is closest to the sun?",
		Options: map[model.Label]string{
			model.LabelA: "Mercury",
			model.LabelB: "Venus",
			model.LabelC: "Mars",
		},
		CorrectAnswer: answer,
		Explanation:   "Mercury orbits at about 0.39 AU.",
		Timestamp:     ts,
	}
}

// createTestFact creates a fact with the given key.
func createTestFact(key, text string, ts time.Time) model.DailyFact {
	return model.DailyFact{Key: key, Fact: text, Timestamp: ts}
}
