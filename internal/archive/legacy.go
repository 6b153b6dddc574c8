package archive

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/trivia/internal/codec"
	"github.com/roach88/trivia/internal/model"
)

// legacyKeyLayout is the DD.MM.YYYY date the gzip-only deployments used as
// question keys and history dates.
const legacyKeyLayout = "02.01.2006"

// legacySnapshot is the gzip-only export layout.
type legacySnapshot struct {
	Leaderboard     map[string]legacyEntry    `json:"leaderboard"`
	DailyFacts      map[string]legacyFact     `json:"daily_facts"`
	TriviaQuestions map[string]legacyQuestion `json:"trivia_questions"`
	ExportTimestamp string                    `json:"export_timestamp"`
}

type legacyEntry struct {
	CurrentStreak  int            `json:"current_streak"`
	TotalCorrect   int            `json:"total_correct"`
	TotalAnswered  int            `json:"total_answered"`
	TotalPoints    int            `json:"total_points"`
	LastAnswered   string         `json:"last_answered"`
	LastTriviaDate string         `json:"last_trivia_date"`
	AnswerHistory  []legacyRecord `json:"answer_history"`
}

type legacyRecord struct {
	Date       string `json:"date"`
	Timestamp  string `json:"timestamp"`
	Correct    bool   `json:"correct"`
	WasCorrect bool   `json:"was_correct"`
}

type legacyFact struct {
	Fact      string `json:"fact"`
	Timestamp string `json:"timestamp"`
}

type legacyQuestion struct {
	Question      string                 `json:"question"`
	Options       map[model.Label]string `json:"options"`
	CorrectAnswer model.Label            `json:"correct_answer"`
	Explanation   string                 `json:"explanation"`
	Timestamp     string                 `json:"timestamp"`
}

// decodeLegacy reads a gzip-only artifact. Naive timestamps are read in loc.
func decodeLegacy(data []byte, loc *time.Location) (model.Snapshot, error) {
	if !codec.IsCompressed(data) {
		return model.Snapshot{}, fmt.Errorf("not a gzip stream")
	}
	var ls legacySnapshot
	if err := codec.Decompress(data, &ls); err != nil {
		return model.Snapshot{}, err
	}

	snap := model.Snapshot{
		Leaderboard:     make(map[string]model.LeaderboardEntry, len(ls.Leaderboard)),
		DailyFacts:      make(map[string]model.DailyFact, len(ls.DailyFacts)),
		TriviaQuestions: make(map[string]model.TriviaQuestion, len(ls.TriviaQuestions)),
	}
	for user, le := range ls.Leaderboard {
		e, err := le.entry(user, loc)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("leaderboard %s: %w", user, err)
		}
		snap.Leaderboard[user] = e
	}
	for _, key := range sortedKeys(ls.DailyFacts) {
		lf := ls.DailyFacts[key]
		ts, err := parseLegacyTime(lf.Timestamp, loc)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("daily fact %s: %w", key, err)
		}
		k := legacyKey(key)
		if _, dup := snap.DailyFacts[k]; dup {
			continue
		}
		snap.DailyFacts[k] = model.DailyFact{Key: k, Fact: lf.Fact, Timestamp: ts}
	}
	for _, key := range sortedKeys(ls.TriviaQuestions) {
		lq := ls.TriviaQuestions[key]
		ts, err := parseLegacyTime(lq.Timestamp, loc)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("trivia question %s: %w", key, err)
		}
		k := legacyKey(key)
		if _, dup := snap.TriviaQuestions[k]; dup {
			continue
		}
		snap.TriviaQuestions[k] = model.TriviaQuestion{
			Key:           k,
			Question:      lq.Question,
			Options:       lq.Options,
			CorrectAnswer: lq.CorrectAnswer,
			Explanation:   lq.Explanation,
			Timestamp:     ts,
		}
	}
	return snap, nil
}

func (le legacyEntry) entry(user string, loc *time.Location) (model.LeaderboardEntry, error) {
	e := model.LeaderboardEntry{
		UserID:          user,
		CurrentStreak:   le.CurrentStreak,
		TotalCorrect:    le.TotalCorrect,
		TotalAnswered:   le.TotalAnswered,
		TotalPoints:     le.TotalPoints,
		LastQuestionKey: legacyKey(le.LastTriviaDate),
		AnswerHistory:   make([]model.AnswerRecord, 0, len(le.AnswerHistory)),
	}

	if le.LastAnswered != "" {
		at, err := parseLegacyTime(le.LastAnswered, loc)
		if err != nil {
			return model.LeaderboardEntry{}, fmt.Errorf("last_answered: %w", err)
		}
		e.LastAnsweredAt = &at
	}

	// History dates were the question keys: one answer per trivia day.
	for i, rec := range le.AnswerHistory {
		ts, err := parseLegacyTime(rec.Timestamp, loc)
		if err != nil {
			return model.LeaderboardEntry{}, fmt.Errorf("answer_history[%d]: %w", i, err)
		}
		date := legacyKey(rec.Date)
		e.AnswerHistory = append(e.AnswerHistory, model.AnswerRecord{
			Date:        date,
			Timestamp:   ts,
			WasCorrect:  rec.Correct || rec.WasCorrect,
			QuestionKey: date,
		})
	}
	if e.LastQuestionKey == "" && len(e.AnswerHistory) > 0 {
		e.LastQuestionKey = e.AnswerHistory[len(e.AnswerHistory)-1].QuestionKey
	}
	return e, nil
}

// legacyKey rewrites a DD.MM.YYYY key as an ISO date. Other keys are kept.
func legacyKey(key string) string {
	if d, err := time.Parse(legacyKeyLayout, key); err == nil {
		return d.Format(model.KeyDateLayout)
	}
	return key
}

// naiveLayouts are tried after RFC 3339, in loc. Fractional seconds are
// accepted after the seconds field without being named in the layout.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	model.KeyDateLayout,
}

// parseLegacyTime parses an RFC 3339 or naive ISO 8601 timestamp and returns
// it in UTC. An empty string is the zero time.
func parseLegacyTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
