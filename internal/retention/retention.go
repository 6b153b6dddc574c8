// Package retention deletes stale rows from the store.
//
// The three operations are independent: each computes its own cut-off,
// issues one delete, and returns the number of rows removed. None of them
// share a transaction.
package retention

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/trivia/internal/clock"
)

// Default retention thresholds in days.
const (
	DefaultTriviaDays          = 30
	DefaultFactsDays           = 30
	DefaultLeaderboardIdleDays = 90
)

// Deleter is the subset of the store the pruner needs.
type Deleter interface {
	DeleteQuestionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteFactsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteIdleLeaderboard(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner applies retention policies relative to the current calendar day.
type Pruner struct {
	store  Deleter
	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(p *Pruner) { p.clock = c }
}

// WithLocation sets the timezone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(p *Pruner) { p.loc = loc }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pruner) { p.logger = l }
}

// New creates a Pruner over store.
func New(store Deleter, opts ...Option) *Pruner {
	p := &Pruner{
		store: store,
		clock: clock.System{},
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.loc == nil {
		p.loc = time.UTC
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Cutoff returns midnight of (today - days) in the pruner's timezone.
// Rows dated on the cut-off day itself are retained.
func (p *Pruner) Cutoff(days int) time.Time {
	return clock.StartOfDay(p.clock.Now(), p.loc).AddDate(0, 0, -days)
}

// PruneTriviaQuestions deletes questions whose key date is older than
// today - maxAgeDays.
func (p *Pruner) PruneTriviaQuestions(ctx context.Context, maxAgeDays int) (int64, error) {
	return p.prune(ctx, "trivia_questions", maxAgeDays, p.store.DeleteQuestionsBefore)
}

// PruneDailyFacts deletes facts whose key date is older than
// today - maxAgeDays.
func (p *Pruner) PruneDailyFacts(ctx context.Context, maxAgeDays int) (int64, error) {
	return p.prune(ctx, "daily_facts", maxAgeDays, p.store.DeleteFactsBefore)
}

// PruneLeaderboard deletes entries whose last answer is older than
// today - minIdleDays. Entries that never answered are kept.
func (p *Pruner) PruneLeaderboard(ctx context.Context, minIdleDays int) (int64, error) {
	return p.prune(ctx, "leaderboard", minIdleDays, p.store.DeleteIdleLeaderboard)
}

func (p *Pruner) prune(ctx context.Context, table string, days int, del func(context.Context, time.Time) (int64, error)) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("prune %s: threshold must be non-negative, got %d", table, days)
	}
	cutoff := p.Cutoff(days)
	n, err := del(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.logger.Info("pruned",
		"table", table,
		"days", days,
		"cutoff", cutoff.Format(time.DateOnly),
		"deleted", n,
	)
	return n, nil
}

// Policy holds a threshold per table.
type Policy struct {
	TriviaDays          int `json:"trivia_days"`
	FactsDays           int `json:"facts_days"`
	LeaderboardIdleDays int `json:"leaderboard_idle_days"`
}

// DefaultPolicy returns the default thresholds.
func DefaultPolicy() Policy {
	return Policy{
		TriviaDays:          DefaultTriviaDays,
		FactsDays:           DefaultFactsDays,
		LeaderboardIdleDays: DefaultLeaderboardIdleDays,
	}
}

// Result is the per-table deleted row count of a RunAll pass.
type Result struct {
	TriviaQuestions int64 `json:"trivia_questions"`
	DailyFacts      int64 `json:"daily_facts"`
	Leaderboard     int64 `json:"leaderboard"`
}

// RunAll applies every threshold in policy. It stops at the first failure
// and returns the counts gathered so far; earlier deletions are not undone.
func (p *Pruner) RunAll(ctx context.Context, policy Policy) (Result, error) {
	var (
		r   Result
		err error
	)
	if r.TriviaQuestions, err = p.PruneTriviaQuestions(ctx, policy.TriviaDays); err != nil {
		return r, err
	}
	if r.DailyFacts, err = p.PruneDailyFacts(ctx, policy.FactsDays); err != nil {
		return r, err
	}
	if r.Leaderboard, err = p.PruneLeaderboard(ctx, policy.LeaderboardIdleDays); err != nil {
		return r, err
	}
	return r, nil
}
