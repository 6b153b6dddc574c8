package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/resolver"
	"github.com/roach88/trivia/internal/store"
	"github.com/roach88/trivia/internal/testutil"
)

// TraceEvent records one resolved step.
type TraceEvent struct {
	Step        int    `json:"step"`
	At          string `json:"at"`
	UserID      string `json:"user_id"`
	Label       string `json:"label"`
	QuestionKey string `json:"question_key"`
	Kind        string `json:"kind"`
	Reason      string `json:"reason,omitempty"`
	Correct     bool   `json:"correct"`
	Points      int    `json:"points"`
	Streak      int    `json:"streak"`
	TotalPoints int    `json:"total_points"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists mismatches. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Leaderboard is the final stored leaderboard.
	Leaderboard map[string]model.LeaderboardEntry `json:"leaderboard"`
}

func newResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes scenario against a fresh in-memory store.
//
// Execution:
// 1. Open an in-memory store and seed the questions
// 2. For each step, set the clock and resolve the submission
// 3. Compare each outcome with the step's expect clause
// 4. Evaluate assertions against the final leaderboard
//
// The returned error covers setup and storage failures only; mismatches
// are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := seedQuestions(ctx, st, scenario.Questions); err != nil {
		return nil, err
	}

	cfg := resolver.DefaultConfig()
	if scenario.Timezone != "" {
		loc, err := time.LoadLocation(scenario.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		cfg.Location = loc
	}
	if scenario.GraceWindow != "" {
		d, err := time.ParseDuration(scenario.GraceWindow)
		if err != nil {
			return nil, fmt.Errorf("grace_window: %w", err)
		}
		cfg.GraceWindow = d
	}
	if scenario.HistoryLimit > 0 {
		cfg.HistoryLimit = scenario.HistoryLimit
	}

	clk := testutil.NewClock(time.Time{})
	r := resolver.New(st, cfg,
		resolver.WithClock(clk),
		resolver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)

	result := newResult()
	for i, step := range scenario.Steps {
		at, err := time.Parse(time.RFC3339Nano, step.At)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		clk.Set(at.UTC())

		out, err := r.Resolve(ctx, resolver.Submission{
			UserID:      step.UserID,
			Label:       model.Label(step.Label),
			QuestionKey: step.QuestionKey,
		})
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		result.Trace = append(result.Trace, TraceEvent{
			Step:        i + 1,
			At:          at.UTC().Format(time.RFC3339),
			UserID:      step.UserID,
			Label:       step.Label,
			QuestionKey: step.QuestionKey,
			Kind:        string(out.Kind),
			Reason:      string(out.Reason),
			Correct:     out.Correct,
			Points:      out.PointsEarned,
			Streak:      out.Streak,
			TotalPoints: out.TotalPoints,
		})
		if step.Expect != nil {
			checkExpect(result, i, step.Expect, out)
		}
	}

	result.Leaderboard, err = st.Leaderboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	for _, a := range scenario.Assertions {
		checkAssertion(result, a)
	}
	return result, nil
}

func seedQuestions(ctx context.Context, st *store.Store, fixtures []QuestionFixture) error {
	questions := make([]model.TriviaQuestion, 0, len(fixtures))
	for _, f := range fixtures {
		ts := time.Time{}
		if d, err := model.KeyDate(f.Key); err == nil {
			ts = d
		}
		questions = append(questions, model.TriviaQuestion{
			Key:      f.Key,
			Question: "Question " + f.Key,
			Options: map[model.Label]string{
				model.LabelA: "Option A",
				model.LabelB: "Option B",
				model.LabelC: "Option C",
			},
			CorrectAnswer: model.Label(f.CorrectAnswer),
			Timestamp:     ts,
		})
	}
	if _, err := st.InsertQuestions(ctx, questions); err != nil {
		return fmt.Errorf("failed to seed questions: %w", err)
	}
	return nil
}

func checkExpect(result *Result, i int, want *Expect, got resolver.Outcome) {
	if string(got.Kind) != want.Kind {
		result.addError("steps[%d]: kind = %s, expected %s", i, got.Kind, want.Kind)
	}
	if want.Reason != "" && string(got.Reason) != want.Reason {
		result.addError("steps[%d]: reason = %q, expected %q", i, got.Reason, want.Reason)
	}
	if want.Points != nil && got.PointsEarned != *want.Points {
		result.addError("steps[%d]: points = %d, expected %d", i, got.PointsEarned, *want.Points)
	}
	if want.Streak != nil && got.Streak != *want.Streak {
		result.addError("steps[%d]: streak = %d, expected %d", i, got.Streak, *want.Streak)
	}
}

func checkAssertion(result *Result, a Assertion) {
	entry, ok := result.Leaderboard[a.User]
	wantExists := a.Exists == nil || *a.Exists
	if ok != wantExists {
		result.addError("%s: exists = %t, expected %t", a.User, ok, wantExists)
		return
	}
	if !ok {
		return
	}

	checks := []struct {
		name string
		want *int
		got  int
	}{
		{"streak", a.Streak, entry.CurrentStreak},
		{"total_correct", a.TotalCorrect, entry.TotalCorrect},
		{"total_answered", a.TotalAnswered, entry.TotalAnswered},
		{"total_points", a.TotalPoints, entry.TotalPoints},
		{"history_length", a.HistoryLength, len(entry.AnswerHistory)},
	}
	for _, c := range checks {
		if c.want != nil && *c.want != c.got {
			result.addError("%s: %s = %d, expected %d", a.User, c.name, c.got, *c.want)
		}
	}
}
