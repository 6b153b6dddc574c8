// Package archive exports the store to a single encrypted artifact and
// restores it.
//
// The artifact is the codec's sealed form of a model.Snapshot: canonical JSON,
// gzip, then XChaCha20-Poly1305 under a PBKDF2-derived key. Writes go to a
// temp file in the same directory followed by a rename, so readers see
// either the previous artifact or the new one.
//
// Older deployments wrote the snapshot gzip-only, with their own field names
// and naive local timestamps. Import accepts that form once, rewrites the
// artifact encrypted, and then restores.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/trivia/internal/clock"
	"github.com/roach88/trivia/internal/codec"
	"github.com/roach88/trivia/internal/idgen"
	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/store"
)

var (
	// ErrArtifactNotFound indicates no artifact exists at the configured path.
	ErrArtifactNotFound = errors.New("archive: artifact not found")

	// ErrCorruptArtifact indicates the artifact could neither be decrypted
	// nor read as the legacy gzip format: wrong key or corrupted bytes.
	ErrCorruptArtifact = errors.New("archive: artifact is corrupt or the key is wrong")
)

// Store is the subset of the store the archiver reads and writes.
type Store interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
	Restore(ctx context.Context, snap model.Snapshot) (store.RestoreResult, error)
	IsEmpty(ctx context.Context) (bool, error)
}

// Archiver moves snapshots between a Store and the artifact file.
type Archiver struct {
	path   string
	codec  *codec.Codec
	store  Store
	clock  clock.Clock
	ids    idgen.Generator
	loc    *time.Location
	logger *slog.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithClock overrides the clock used to stamp ExportedAt.
func WithClock(c clock.Clock) Option {
	return func(a *Archiver) { a.clock = c }
}

// WithLocation sets the zone used to read naive timestamps in legacy
// artifacts. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(a *Archiver) { a.loc = loc }
}

// WithIDGenerator overrides the snapshot id generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(a *Archiver) { a.ids = g }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archiver) { a.logger = l }
}

// New creates an Archiver for the artifact at path.
func New(path string, c *codec.Codec, s Store, opts ...Option) *Archiver {
	a := &Archiver{
		path:  path,
		codec: c,
		store: s,
		clock: clock.System{},
		ids:   idgen.UUIDv7Generator{},
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.loc == nil {
		a.loc = time.UTC
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a
}

// Path returns the artifact location.
func (a *Archiver) Path() string {
	return a.path
}

// ExportResult describes a written artifact.
type ExportResult struct {
	SnapshotID      string `json:"snapshot_id"`
	Path            string `json:"path"`
	Bytes           int    `json:"bytes"`
	Leaderboard     int    `json:"leaderboard"`
	DailyFacts      int    `json:"daily_facts"`
	TriviaQuestions int    `json:"trivia_questions"`
}

// Export snapshots the store and atomically replaces the artifact.
func (a *Archiver) Export(ctx context.Context) (ExportResult, error) {
	snap, err := a.store.Snapshot(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}
	return a.write(snap)
}

func (a *Archiver) write(snap model.Snapshot) (ExportResult, error) {
	snap.SnapshotID = a.ids.Generate()
	snap.ExportedAt = a.clock.Now().UTC()
	if snap.Leaderboard == nil {
		snap.Leaderboard = map[string]model.LeaderboardEntry{}
	}
	if snap.DailyFacts == nil {
		snap.DailyFacts = map[string]model.DailyFact{}
	}
	if snap.TriviaQuestions == nil {
		snap.TriviaQuestions = map[string]model.TriviaQuestion{}
	}

	data, err := a.codec.Seal(snap)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}
	if err := writeFileAtomic(a.path, data, 0o600); err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}

	r := ExportResult{
		SnapshotID:      snap.SnapshotID,
		Path:            a.path,
		Bytes:           len(data),
		Leaderboard:     len(snap.Leaderboard),
		DailyFacts:      len(snap.DailyFacts),
		TriviaQuestions: len(snap.TriviaQuestions),
	}
	a.logger.Info("artifact exported",
		"snapshot_id", r.SnapshotID,
		"path", r.Path,
		"bytes", r.Bytes,
	)
	return r, nil
}

// ImportResult describes a restored artifact.
type ImportResult struct {
	SnapshotID string              `json:"snapshot_id"`
	Legacy     bool                `json:"legacy"`
	Restored   store.RestoreResult `json:"restored"`
}

// Import reads the artifact and restores it into the store.
//
// The artifact is fully decoded before anything is written. A gzip-only
// artifact is re-exported encrypted before the restore. When neither form
// decodes the error wraps ErrCorruptArtifact and the store is untouched.
func (a *Archiver) Import(ctx context.Context) (ImportResult, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ImportResult{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, a.path)
		}
		return ImportResult{}, fmt.Errorf("import: read artifact: %w", err)
	}

	var (
		snap   model.Snapshot
		legacy bool
	)
	if openErr := a.codec.Open(data, &snap); openErr != nil {
		snap, err = decodeLegacy(data, a.loc)
		if err != nil {
			a.logger.Debug("artifact is not a legacy snapshot either", "path", a.path, "error", err)
			return ImportResult{}, fmt.Errorf("%w: %s: %w", ErrCorruptArtifact, a.path, openErr)
		}
		legacy = true
		a.logger.Warn("legacy unencrypted artifact detected, upgrading", "path", a.path)

		written, err := a.write(snap)
		if err != nil {
			return ImportResult{}, fmt.Errorf("import: upgrade legacy artifact: %w", err)
		}
		snap.SnapshotID = written.SnapshotID
	}

	restored, err := a.store.Restore(ctx, snap)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}

	r := ImportResult{SnapshotID: snap.SnapshotID, Legacy: legacy, Restored: restored}
	a.logger.Info("artifact imported",
		"snapshot_id", r.SnapshotID,
		"legacy", r.Legacy,
		"leaderboard", restored.Leaderboard,
		"daily_facts", restored.DailyFacts,
		"trivia_questions", restored.TriviaQuestions,
	)
	return r, nil
}

// WarmStart hydrates an empty store from the artifact. It never fails:
// a missing artifact is normal on first run and any other problem is logged
// as a warning so startup can proceed with the empty store.
func (a *Archiver) WarmStart(ctx context.Context) bool {
	empty, err := a.store.IsEmpty(ctx)
	if err != nil {
		a.logger.Warn("warm start skipped", "error", err)
		return false
	}
	if !empty {
		return false
	}

	if _, err := a.Import(ctx); err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			a.logger.Debug("no artifact to warm start from", "path", a.path)
		} else {
			a.logger.Warn("warm start failed", "path", a.path, "error", err)
		}
		return false
	}
	return true
}

// writeFileAtomic writes data to a temp file next to path, syncs it, and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
