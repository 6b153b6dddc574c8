// Package resolver decides whether an answer submission is credited and
// applies the scoring update.
//
// For each (user, question key) a submission moves from Unseen to Accepted
// at most once. A key already credited in the entry's history, or dated
// before its last_question_key, is a duplicate. A grace window also treats a
// second submission on the same calendar day shortly after the first as a
// duplicate even when it names a different key. That rule covers
// submissions that straddle the question rollover in another timezone.
package resolver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/roach88/trivia/internal/clock"
	"github.com/roach88/trivia/internal/idgen"
	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/scoring"
)

// DefaultGraceWindow is how long after an accepted answer a same-day
// submission counts as a duplicate.
const DefaultGraceWindow = 2 * time.Hour

// MaxUserIDLength bounds user ids.
const MaxUserIDLength = 39

// userIDPattern accepts alphanumeric runs separated by single hyphens.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+(-[A-Za-z0-9]+)*$`)

// ValidUserID reports whether id is a well-formed user identifier.
func ValidUserID(id string) bool {
	return len(id) > 0 && len(id) <= MaxUserIDLength && userIDPattern.MatchString(id)
}

// LeaderboardStore reads and replaces the whole leaderboard.
type LeaderboardStore interface {
	Leaderboard(ctx context.Context) (map[string]model.LeaderboardEntry, error)
	ReplaceLeaderboard(ctx context.Context, entries map[string]model.LeaderboardEntry) error
}

// QuestionStore looks up questions by key.
type QuestionStore interface {
	TriviaQuestion(ctx context.Context, key string) (model.TriviaQuestion, bool, error)
}

// Store is everything the resolver reads and writes.
type Store interface {
	LeaderboardStore
	QuestionStore
}

// Config tunes duplicate detection and history retention.
type Config struct {
	GraceWindow  time.Duration
	HistoryLimit int
	Location     *time.Location
}

// DefaultConfig returns a 2h grace window, 30 history entries, UTC days.
func DefaultConfig() Config {
	return Config{
		GraceWindow:  DefaultGraceWindow,
		HistoryLimit: model.DefaultHistoryLimit,
		Location:     time.UTC,
	}
}

// Resolver applies submissions to the leaderboard.
//
// It assumes a single writer: one Resolve or ProcessBatch call runs to
// completion before the next starts.
type Resolver struct {
	store  Store
	cfg    Config
	clock  clock.Clock
	ids    idgen.Generator
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(r *Resolver) { r.clock = c }
}

// WithIDGenerator overrides the batch run id generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(r *Resolver) { r.ids = g }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver. Zero config fields take their defaults.
func New(store Store, cfg Config, opts ...Option) *Resolver {
	def := DefaultConfig()
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = def.GraceWindow
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	r := &Resolver{
		store: store,
		cfg:   cfg,
		clock: clock.System{},
		ids:   idgen.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Resolve evaluates one submission and, when accepted, persists the updated
// leaderboard. The returned error is non-nil only for storage failures; in
// that case nothing is assumed persisted.
func (r *Resolver) Resolve(ctx context.Context, sub Submission) (Outcome, error) {
	out := Outcome{UserID: sub.UserID, QuestionKey: sub.QuestionKey}

	if !ValidUserID(sub.UserID) {
		out.Kind = KindInvalidUser
		return out, nil
	}
	if !sub.Label.Valid() {
		out.Kind = KindInvalidLabel
		return out, nil
	}

	question, ok, err := r.store.TriviaQuestion(ctx, sub.QuestionKey)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve %s: lookup question %s: %w", sub.UserID, sub.QuestionKey, err)
	}
	if !ok {
		out.Kind = KindUnknownQuestion
		return out, nil
	}

	board, err := r.store.Leaderboard(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve %s: read leaderboard: %w", sub.UserID, err)
	}
	if board == nil {
		board = map[string]model.LeaderboardEntry{}
	}

	now := r.clock.Now()
	entry := board[sub.UserID].Clone()
	entry.UserID = sub.UserID

	if reason, dup := r.duplicate(entry, sub.QuestionKey, now); dup {
		out.Kind = KindDuplicate
		out.Reason = reason
		return out, nil
	}

	correct := sub.Label == question.CorrectAnswer
	points := apply(&entry, sub.QuestionKey, correct, now, r.cfg)

	board[sub.UserID] = entry
	if err := r.store.ReplaceLeaderboard(ctx, board); err != nil {
		return Outcome{}, fmt.Errorf("resolve %s: persist leaderboard: %w", sub.UserID, err)
	}

	out.Kind = KindAccepted
	out.Correct = correct
	out.PointsEarned = points
	out.Streak = entry.CurrentStreak
	out.TotalPoints = entry.TotalPoints
	if correct {
		info := scoring.StreakBonusInfo(entry.CurrentStreak)
		out.Bonus = &info
	}
	return out, nil
}

func (r *Resolver) duplicate(entry model.LeaderboardEntry, key string, now time.Time) (DuplicateReason, bool) {
	if entry.Answered(key) {
		return ReasonAlreadyAnswered, true
	}
	if superseded(entry.LastQuestionKey, key) {
		return ReasonSuperseded, true
	}
	if entry.LastAnsweredAt != nil {
		last := *entry.LastAnsweredAt
		since := now.Sub(last)
		if since >= 0 && since < r.cfg.GraceWindow && model.SameDay(last, now, r.cfg.Location) {
			return ReasonGraceWindow, true
		}
	}
	return "", false
}

// superseded reports whether key is dated before last. Keys without an ISO
// date prefix are never ordered.
func superseded(last, key string) bool {
	if last == "" {
		return false
	}
	lastDate, err := model.KeyDate(last)
	if err != nil {
		return false
	}
	keyDate, err := model.KeyDate(key)
	if err != nil {
		return false
	}
	return keyDate.Before(lastDate)
}

// apply credits an accepted answer to entry and returns the points earned.
func apply(entry *model.LeaderboardEntry, key string, correct bool, now time.Time, cfg Config) int {
	at := now.UTC()

	entry.TotalAnswered++
	entry.AppendHistory(model.AnswerRecord{
		Date:        model.KeyForDate(now, cfg.Location),
		Timestamp:   at,
		WasCorrect:  correct,
		QuestionKey: key,
	}, cfg.HistoryLimit)
	entry.LastAnsweredAt = &at
	entry.LastQuestionKey = key

	if !correct {
		entry.CurrentStreak = 0
		return 0
	}

	entry.CurrentStreak++
	entry.TotalCorrect++
	if entry.FirstCorrectAt == nil {
		first := at
		entry.FirstCorrectAt = &first
	}
	points := scoring.PointsForStreak(entry.CurrentStreak)
	entry.TotalPoints += points
	return points
}
