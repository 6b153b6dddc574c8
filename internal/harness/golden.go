package harness

import (
	"bytes"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/trivia/internal/codec"
)

// leaderboardLine is the golden form of one final entry.
type leaderboardLine struct {
	UserID          string `json:"user_id"`
	Streak          int    `json:"streak"`
	TotalCorrect    int    `json:"total_correct"`
	TotalAnswered   int    `json:"total_answered"`
	TotalPoints     int    `json:"total_points"`
	LastQuestionKey string `json:"last_question_key"`
	History         int    `json:"history"`
}

// Render serializes the trace and final leaderboard as canonical JSON
// lines: a header, one line per step, then one line per user in id order.
func (r *Result) Render(name string) ([]byte, error) {
	var buf bytes.Buffer
	write := func(v any) error {
		line, err := codec.MarshalCanonical(v)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
		return nil
	}

	if err := write(map[string]any{"scenario": name, "steps": len(r.Trace)}); err != nil {
		return nil, err
	}
	for _, ev := range r.Trace {
		if err := write(ev); err != nil {
			return nil, err
		}
	}

	users := make([]string, 0, len(r.Leaderboard))
	for u := range r.Leaderboard {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		e := r.Leaderboard[u]
		if err := write(leaderboardLine{
			UserID:          u,
			Streak:          e.CurrentStreak,
			TotalCorrect:    e.TotalCorrect,
			TotalAnswered:   e.TotalAnswered,
			TotalPoints:     e.TotalPoints,
			LastQuestionKey: e.LastQuestionKey,
			History:         len(e.AnswerHistory),
		}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can inspect Errors; a mismatch with the
// golden file fails t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := result.Render(name)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
