package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial layout (leaderboard without first_correct_at, no schema_meta)
// 2 - Added leaderboard.first_correct_at and the schema_meta record
const currentSchemaVersion = 2

// legacySchemaVersion is assumed for databases that predate schema_meta.
const legacySchemaVersion = 1

// timeLayout is fixed-width so stored timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrForwardOnly is returned when the on-disk schema is newer than this build.
var ErrForwardOnly = errors.New("store: schema version is newer than supported")

// Store provides durable storage for the trivia feed.
// Uses SQLite with WAL mode and a single connection.
type Store struct {
	db      *sql.DB
	created bool
}

// Open creates or opens a SQLite database at the given path.
// The parent directory is created on demand. Applies required pragmas,
// creates missing tables and the schema_meta record, then migrates a stale
// schema forward.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	created := isNewDatabase(path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db, created: created}
	if err := s.applySchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// Created reports whether Open created the database rather than opening an
// existing one.
func (s *Store) Created() bool {
	return s.created
}

// isNewDatabase reports whether path has no database yet: in-memory, absent,
// or a zero-length file.
func isNewDatabase(path string) bool {
	if path == ":memory:" {
		return true
	}
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	return err == nil && fi.Size() == 0
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist, seeds schema_meta, and
// migrates stale databases. A leaderboard table without a schema_meta table
// means the database was written by a build that predates version tracking.
func (s *Store) applySchema(ctx context.Context) error {
	hadLeaderboard, err := s.tableExists(ctx, "leaderboard")
	if err != nil {
		return err
	}
	hadMeta, err := s.tableExists(ctx, "schema_meta")
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	initial := currentSchemaVersion
	if hadLeaderboard && !hadMeta {
		initial = legacySchemaVersion
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_meta (id, schema_version) VALUES (1, ?) ON CONFLICT(id) DO NOTHING`,
		initial,
	); err != nil {
		return fmt.Errorf("seed schema_meta: %w", err)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	return s.Migrate(ctx, version)
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count > 0, nil
}

// CurrentSchemaVersion is the schema version this build writes.
func CurrentSchemaVersion() int {
	return currentSchemaVersion
}

// SchemaVersion returns the version recorded in schema_meta.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return v, nil
}

// SetSchemaVersion overwrites the recorded schema version.
func (s *Store) SetSchemaVersion(ctx context.Context, v int) error {
	if v <= 0 {
		return fmt.Errorf("set schema version: invalid version %d", v)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_meta (id, schema_version) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET schema_version = excluded.schema_version`, v)
	if err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// formatTime renders t in the fixed-width storage layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Accept RFC 3339 text written by hand or by older builds.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func scanNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Counts reports the number of rows per record table.
type Counts struct {
	Leaderboard     int `json:"leaderboard"`
	DailyFacts      int `json:"daily_facts"`
	TriviaQuestions int `json:"trivia_questions"`
}

// Total returns the sum of all table counts.
func (c Counts) Total() int {
	return c.Leaderboard + c.DailyFacts + c.TriviaQuestions
}

// Counts returns per-table row counts.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM leaderboard),
			(SELECT COUNT(*) FROM daily_facts),
			(SELECT COUNT(*) FROM trivia_questions)
	`).Scan(&c.Leaderboard, &c.DailyFacts, &c.TriviaQuestions)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// IsEmpty reports whether all three record tables are empty.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	c, err := s.Counts(ctx)
	if err != nil {
		return false, err
	}
	return c.Total() == 0, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
