package archive

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trivia/internal/codec"
	"github.com/roach88/trivia/internal/idgen"
	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/resolver"
	"github.com/roach88/trivia/internal/store"
	"github.com/roach88/trivia/internal/testutil"
)

var (
	testSalt = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	testNow  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "trivia.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newCodec(t *testing.T, secret string) *codec.Codec {
	t.Helper()
	c, err := codec.New(secret, testSalt, 1000)
	require.NoError(t, err)
	return c
}

func newArchiver(t *testing.T, path string, c *codec.Codec, s Store, ids ...string) *Archiver {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"snap-1", "snap-2", "snap-3"}
	}
	return New(path, c, s,
		WithClock(testutil.NewClock(testNow)),
		WithIDGenerator(idgen.NewSequence(ids...)),
	)
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	answered := testNow.Add(-time.Hour)
	require.NoError(t, s.ReplaceLeaderboard(ctx, map[string]model.LeaderboardEntry{
		"octocat": {
			UserID:          "octocat",
			CurrentStreak:   3,
			TotalCorrect:    3,
			TotalAnswered:   4,
			TotalPoints:     4,
			LastAnsweredAt:  &answered,
			LastQuestionKey: "2024-03-01",
			FirstCorrectAt:  &answered,
			AnswerHistory: []model.AnswerRecord{
				{Date: "2024-03-01", Timestamp: answered, WasCorrect: true},
			},
		},
	}))
	_, err := s.InsertFacts(ctx, []model.DailyFact{
		{Key: "2024-03-01T06:00:00Z", Fact: "Octopuses have three hearts.", Timestamp: testNow},
	})
	require.NoError(t, err)
	_, err = s.InsertQuestions(ctx, []model.TriviaQuestion{{
		Key:      "2024-03-01",
		Question: "How many hearts does an octopus have?",
		Options: map[model.Label]string{
			model.LabelA: "One", model.LabelB: "Two", model.LabelC: "Three",
		},
		CorrectAnswer: model.LabelC,
		Explanation:   "Two branchial hearts and one systemic heart.",
		Timestamp:     testNow,
	}})
	require.NoError(t, err)
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "trivia_database.db.gz")
	c := newCodec(t, "secret")

	src := openStore(t)
	seed(t, src)

	exp, err := newArchiver(t, path, c, src).Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", exp.SnapshotID)
	assert.Equal(t, 1, exp.Leaderboard)
	assert.Equal(t, 1, exp.DailyFacts)
	assert.Equal(t, 1, exp.TriviaQuestions)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, codec.IsEncrypted(raw))
	assert.Equal(t, len(raw), exp.Bytes)

	dst := openStore(t)
	imp, err := newArchiver(t, path, c, dst).Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", imp.SnapshotID)
	assert.False(t, imp.Legacy)

	want, err := src.Snapshot(ctx)
	require.NoError(t, err)
	got, err := dst.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExportImport_EmptyLeaderboardScenario(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")

	c, err := codec.New("s", base64.StdEncoding.EncodeToString([]byte("0123456789abcdef")), codec.MinIterations)
	require.NoError(t, err)

	_, err = newArchiver(t, path, c, openStore(t)).Export(ctx)
	require.NoError(t, err)

	// Second instance derives its own key from the same inputs
	c2, err := codec.New("s", base64.StdEncoding.EncodeToString([]byte("0123456789abcdef")), codec.MinIterations)
	require.NoError(t, err)
	dst := openStore(t)
	_, err = newArchiver(t, path, c2, dst).Import(ctx)
	require.NoError(t, err)

	lb, err := dst.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]model.LeaderboardEntry{}, lb)
}

func TestImport_WrongKeyLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")

	src := openStore(t)
	seed(t, src)
	_, err := newArchiver(t, path, newCodec(t, "right"), src).Export(ctx)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	dst := openStore(t)
	_, err = newArchiver(t, path, newCodec(t, "wrong"), dst).Import(ctx)
	require.ErrorIs(t, err, ErrCorruptArtifact)
	assert.ErrorIs(t, err, codec.ErrDecrypt)
	assert.NotErrorIs(t, err, ErrArtifactNotFound)

	empty, err := dst.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	// The artifact itself is not rewritten
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImport_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an artifact"), 0o600))

	_, err := newArchiver(t, path, newCodec(t, "secret"), openStore(t)).Import(context.Background())
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestImport_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db.gz")

	_, err := newArchiver(t, path, newCodec(t, "secret"), openStore(t)).Import(context.Background())
	assert.ErrorIs(t, err, ErrArtifactNotFound)
	assert.NotErrorIs(t, err, ErrCorruptArtifact)
}

// legacyArtifact mirrors the gzip-only export: DD.MM.YYYY question keys,
// last_answered and last_trivia_date, history "correct" flags and naive
// local timestamps.
func legacyArtifact(t *testing.T) []byte {
	t.Helper()
	data, err := codec.Compress(map[string]any{
		"leaderboard": map[string]any{
			"octocat": map[string]any{
				"current_streak":   2,
				"total_correct":    2,
				"total_points":     2,
				"total_answered":   2,
				"last_answered":    "2024-03-01T09:30:00.123456",
				"last_trivia_date": "01.03.2024",
				"answer_history": []any{
					map[string]any{"date": "29.02.2024", "timestamp": "2024-02-29T09:00:00.000001", "correct": true},
					map[string]any{"date": "01.03.2024", "timestamp": "2024-03-01T09:30:00.123456", "correct": true},
				},
			},
			"hubot": map[string]any{
				"current_streak":   0,
				"total_correct":    0,
				"total_points":     0,
				"total_answered":   0,
				"last_answered":    nil,
				"last_trivia_date": nil,
				"answer_history":   []any{},
			},
		},
		"daily_facts": map[string]any{
			"2024-03-01T06:00:00.654321": map[string]any{
				"fact":      "Honey never spoils.",
				"timestamp": "2024-03-01T06:00:00.654321",
			},
		},
		"trivia_questions": map[string]any{
			"01.03.2024": map[string]any{
				"question":       "How many hearts does an octopus have?",
				"options":        map[string]any{"A": "One", "B": "Two", "C": "Three"},
				"correct_answer": "C",
				"explanation":    nil,
				"timestamp":      "2024-03-01T00:00:05.5",
			},
		},
		"export_timestamp": "2024-03-01T10:00:00.000000",
	})
	require.NoError(t, err)
	return data
}

func TestImport_LegacyUpgradesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")
	require.NoError(t, os.WriteFile(path, legacyArtifact(t), 0o644))

	c := newCodec(t, "secret")
	s := openStore(t)

	r, err := newArchiver(t, path, c, s).Import(ctx)
	require.NoError(t, err)
	assert.True(t, r.Legacy)
	assert.Equal(t, "snap-1", r.SnapshotID)
	assert.Equal(t, store.RestoreResult{Leaderboard: 2, DailyFacts: 1, TriviaQuestions: 1}, r.Restored)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, codec.IsEncrypted(raw), "legacy artifact must be rewritten encrypted")

	// Second import reads the upgraded artifact directly
	r, err = newArchiver(t, path, c, openStore(t)).Import(ctx)
	require.NoError(t, err)
	assert.False(t, r.Legacy)
	assert.Equal(t, "snap-1", r.SnapshotID)

	entry, ok, err := s.LeaderboardEntry(ctx, "octocat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, entry.TotalPoints)
	assert.Equal(t, "2024-03-01", entry.LastQuestionKey)
	require.NotNil(t, entry.LastAnsweredAt)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 123456000, time.UTC), *entry.LastAnsweredAt)
	require.Len(t, entry.AnswerHistory, 2)
	assert.Equal(t, model.AnswerRecord{
		Date:        "2024-02-29",
		Timestamp:   time.Date(2024, 2, 29, 9, 0, 0, 1000, time.UTC),
		WasCorrect:  true,
		QuestionKey: "2024-02-29",
	}, entry.AnswerHistory[0])

	newbie, ok, err := s.LeaderboardEntry(ctx, "hubot")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, newbie.LastAnsweredAt)
	assert.Empty(t, newbie.LastQuestionKey)

	q, ok, err := s.TriviaQuestion(ctx, "2024-03-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.LabelC, q.CorrectAnswer)
	assert.Empty(t, q.Explanation)

	facts, err := s.DailyFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "2024-03-01T06:00:00.654321", facts[0].Key)
}

func TestImport_LegacyNaiveTimesUseLocation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")
	require.NoError(t, os.WriteFile(path, legacyArtifact(t), 0o644))

	s := openStore(t)
	a := New(path, newCodec(t, "secret"), s,
		WithClock(testutil.NewClock(testNow)),
		WithLocation(time.FixedZone("UTC+2", 2*60*60)),
	)
	_, err := a.Import(ctx)
	require.NoError(t, err)

	entry, _, err := s.LeaderboardEntry(ctx, "octocat")
	require.NoError(t, err)
	require.NotNil(t, entry.LastAnsweredAt)
	assert.Equal(t, time.Date(2024, 3, 1, 7, 30, 0, 123456000, time.UTC), *entry.LastAnsweredAt)
}

func TestImport_LegacyAnswerIsNotCreditedAgain(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")
	require.NoError(t, os.WriteFile(path, legacyArtifact(t), 0o644))

	s := openStore(t)
	_, err := newArchiver(t, path, newCodec(t, "secret"), s).Import(ctx)
	require.NoError(t, err)

	clk := testutil.NewClock(time.Date(2024, 3, 1, 9, 40, 0, 0, time.UTC))
	r := resolver.New(s, resolver.DefaultConfig(), resolver.WithClock(clk))
	sub := resolver.Submission{UserID: "octocat", Label: model.LabelC, QuestionKey: "2024-03-01"}

	out, err := r.Resolve(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, resolver.KindDuplicate, out.Kind)
	assert.Equal(t, resolver.ReasonAlreadyAnswered, out.Reason)

	// Still a duplicate outside the grace window
	clk.Advance(48 * time.Hour)
	out, err = r.Resolve(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, resolver.KindDuplicate, out.Kind)

	entry, _, err := s.LeaderboardEntry(ctx, "octocat")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.TotalPoints)
	assert.Equal(t, 2, entry.TotalAnswered)
}

func TestImport_LegacyUnparseableTimestampIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")
	data, err := codec.Compress(map[string]any{
		"leaderboard": map[string]any{},
		"daily_facts": map[string]any{
			"2024-03-01": map[string]any{"fact": "x", "timestamp": "yesterday-ish"},
		},
		"trivia_questions": map[string]any{},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s := openStore(t)
	_, err = newArchiver(t, path, newCodec(t, "secret"), s).Import(context.Background())
	require.ErrorIs(t, err, ErrCorruptArtifact)

	empty, err := s.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestParseLegacyTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"2024-03-01T09:30:00Z", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2024-03-01T09:30:00+02:00", time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)},
		{"2024-03-01T09:30:00.5", time.Date(2024, 3, 1, 9, 30, 0, 500000000, time.UTC)},
		{"2024-03-01T09:30:00", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2024-03-01 09:30:00", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLegacyTime(tt.in, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseLegacyTime("01/03/2024", time.UTC)
	assert.Error(t, err)
}

func TestLegacyKey(t *testing.T) {
	assert.Equal(t, "2024-03-01", legacyKey("01.03.2024"))
	assert.Equal(t, "2024-03-01", legacyKey("2024-03-01"))
	assert.Equal(t, "2024-03-01T06:00:00", legacyKey("2024-03-01T06:00:00"))
	assert.Equal(t, "", legacyKey(""))
}

func TestExport_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trivia_database.db.gz")
	a := newArchiver(t, path, newCodec(t, "secret"), openStore(t))

	_, err := a.Export(context.Background())
	require.NoError(t, err)
	_, err = a.Export(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "trivia_database.db.gz", entries[0].Name())
}

func TestWarmStart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")
	c := newCodec(t, "secret")

	// No artifact yet
	empty := openStore(t)
	assert.False(t, newArchiver(t, path, c, empty).WarmStart(ctx))

	src := openStore(t)
	seed(t, src)
	_, err := newArchiver(t, path, c, src).Export(ctx)
	require.NoError(t, err)

	assert.True(t, newArchiver(t, path, c, empty).WarmStart(ctx))
	counts, err := empty.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Leaderboard: 1, DailyFacts: 1, TriviaQuestions: 1}, counts)

	// A populated store is never overwritten
	assert.False(t, newArchiver(t, path, c, src).WarmStart(ctx))
}

func TestWarmStart_WrongKeyIsNotFatal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trivia_database.db.gz")

	src := openStore(t)
	seed(t, src)
	_, err := newArchiver(t, path, newCodec(t, "right"), src).Export(ctx)
	require.NoError(t, err)

	dst := openStore(t)
	assert.False(t, newArchiver(t, path, newCodec(t, "wrong"), dst).WarmStart(ctx))
}
