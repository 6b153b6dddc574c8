package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file and parent directory were created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM leaderboard").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Created(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	assert.True(t, s1.Created())
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	assert.False(t, s2.Created())

	// A zero-length file has no database yet
	empty := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	s3, err := Open(empty)
	require.NoError(t, err)
	defer s3.Close()
	assert.True(t, s3.Created())

	mem, err := Open(":memory:")
	require.NoError(t, err)
	defer mem.Close()
	assert.True(t, mem.Created())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"leaderboard", "daily_facts", "trivia_questions", "schema_meta"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion(), v)
}

func TestOpen_InvalidPath(t *testing.T) {
	// A regular file where the parent directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Open(filepath.Join(blocker, "test.db"))
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close must not panic
	_ = s.Close()
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

// Schema and migration tests

func TestSchema_CorrectAnswerConstraint(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO trivia_questions (key, question, options, correct_answer, timestamp)
		VALUES ('2024-01-01', 'q', x'00', 'D', '2024-01-01T00:00:00.000000000Z')`)
	assert.Error(t, err, "correct_answer outside A/B/C must be rejected")
}

func TestSchema_NonNegativeCounters(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO leaderboard (user_id, current_streak) VALUES ('alice', -1)`)
	assert.Error(t, err)
}

// legacyLeaderboardDDL is the version 1 layout: no first_correct_at, no schema_meta.
const legacyLeaderboardDDL = `
CREATE TABLE leaderboard (
    user_id           TEXT PRIMARY KEY,
    current_streak    INTEGER NOT NULL DEFAULT 0,
    total_correct     INTEGER NOT NULL DEFAULT 0,
    total_answered    INTEGER NOT NULL DEFAULT 0,
    total_points      INTEGER NOT NULL DEFAULT 0,
    last_answered_at  TEXT,
    last_question_key TEXT,
    answer_history    BLOB
);
INSERT INTO leaderboard (user_id, current_streak, total_correct, total_answered, total_points)
VALUES ('octocat', 2, 5, 7, 6);
`

func writeLegacyDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(legacyLeaderboardDDL)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func TestOpen_MigratesLegacySchema(t *testing.T) {
	path := writeLegacyDatabase(t)
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// Existing rows survive and gain the new column as NULL
	entry, ok, err := s.LeaderboardEntry(ctx, "octocat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, entry.CurrentStreak)
	assert.Equal(t, 6, entry.TotalPoints)
	assert.Nil(t, entry.FirstCorrectAt)
	assert.Empty(t, entry.AnswerHistory)
	assert.NotNil(t, entry.AnswerHistory)
}

func TestMigrate_Idempotent(t *testing.T) {
	path := writeLegacyDatabase(t)
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	// Re-running from the legacy version is a no-op once recorded as current
	require.NoError(t, s.Migrate(ctx, legacySchemaVersion))
	require.NoError(t, s.Migrate(ctx, currentSchemaVersion))

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestMigrate_RefusesDowngrade(t *testing.T) {
	s := createTestStore(t)

	err := s.Migrate(context.Background(), currentSchemaVersion+1)
	assert.ErrorIs(t, err, ErrForwardOnly)
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetSchemaVersion(context.Background(), currentSchemaVersion+1))
	s.Close()

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrForwardOnly)
}

func TestSetSchemaVersion_RejectsNonPositive(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.SetSchemaVersion(context.Background(), 0))
}

func TestCounts_EmptyStore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, c)

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}
