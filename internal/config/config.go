// Package config assembles the explicit configuration passed to the store,
// codec, archive, resolver and pruner. Nothing here reads process state on
// its own: the environment is injected as a lookup function.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/roach88/trivia/internal/codec"
	"github.com/roach88/trivia/internal/model"
	"github.com/roach88/trivia/internal/resolver"
	"github.com/roach88/trivia/internal/retention"
)

// Environment variable names.
const (
	EnvDatabasePath = "TRIVIA_DB_PATH"
	EnvArtifactPath = "TRIVIA_ARTIFACT_PATH"
	EnvSecret       = "TRIVIA_DB_PASSWORD"
	EnvSalt         = "TRIVIA_DB_SALT"
)

// Defaults.
const (
	DefaultDatabasePath = "data/trivia.db"
	DefaultArtifactPath = "data/trivia_database.db.gz"
	DefaultTimezone     = "UTC"
)

// Error is a configuration problem. Callers treat it as fatal at startup.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Duration is a time.Duration that unmarshals from strings like "2h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(v)
	return nil
}

// Retention holds per-table thresholds in days.
type Retention struct {
	TriviaDays          int `yaml:"trivia_days"`
	FactsDays           int `yaml:"facts_days"`
	LeaderboardIdleDays int `yaml:"leaderboard_idle_days"`
}

// Config is the complete runtime configuration.
type Config struct {
	DatabasePath  string    `yaml:"database_path"`
	ArtifactPath  string    `yaml:"artifact_path"`
	KDFIterations int       `yaml:"kdf_iterations"`
	GraceWindow   Duration  `yaml:"grace_window"`
	Timezone      string    `yaml:"timezone"`
	HistoryLimit  int       `yaml:"history_limit"`
	Retention     Retention `yaml:"retention"`

	// Secret and Salt come only from the environment.
	Secret string `yaml:"-"`
	Salt   string `yaml:"-"`
}

// Default returns a Config with every field but the secrets set.
func Default() Config {
	return Config{
		DatabasePath:  DefaultDatabasePath,
		ArtifactPath:  DefaultArtifactPath,
		KDFIterations: codec.DefaultIterations,
		GraceWindow:   Duration(resolver.DefaultGraceWindow),
		Timezone:      DefaultTimezone,
		HistoryLimit:  model.DefaultHistoryLimit,
		Retention: Retention{
			TriviaDays:          retention.DefaultTriviaDays,
			FactsDays:           retention.DefaultFactsDays,
			LeaderboardIdleDays: retention.DefaultLeaderboardIdleDays,
		},
	}
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then the environment. It does not validate; call
// Validate before use.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, &Error{Field: "file", Message: fmt.Sprintf("%s not found", path)}
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	if v := getenv(EnvDatabasePath); v != "" {
		cfg.DatabasePath = v
	}
	if v := getenv(EnvArtifactPath); v != "" {
		cfg.ArtifactPath = v
	}
	cfg.Secret = getenv(EnvSecret)
	cfg.Salt = strings.TrimSpace(getenv(EnvSalt))

	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return &Error{Field: "file", Message: err.Error()}
	}
	return nil
}

// Validate checks every field. Missing secrets are reported with the
// environment variable to set.
func (c Config) Validate() error {
	if err := c.ValidateSettings(); err != nil {
		return err
	}
	return c.ValidateSecrets()
}

// ValidateSettings checks everything except the secret and salt.
func (c Config) ValidateSettings() error {
	if c.DatabasePath == "" {
		return &Error{Field: "database_path", Message: "must not be empty"}
	}
	if c.ArtifactPath == "" {
		return &Error{Field: "artifact_path", Message: "must not be empty"}
	}
	if c.KDFIterations < codec.MinIterations {
		return &Error{Field: "kdf_iterations", Message: fmt.Sprintf("must be at least %d, got %d", codec.MinIterations, c.KDFIterations)}
	}
	if c.GraceWindow <= 0 {
		return &Error{Field: "grace_window", Message: "must be positive"}
	}
	if c.HistoryLimit <= 0 {
		return &Error{Field: "history_limit", Message: "must be positive"}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &Error{Field: "timezone", Message: fmt.Sprintf("unknown timezone %q", c.Timezone)}
	}
	if c.Retention.TriviaDays < 0 || c.Retention.FactsDays < 0 || c.Retention.LeaderboardIdleDays < 0 {
		return &Error{Field: "retention", Message: "thresholds must be non-negative"}
	}
	return nil
}

// ValidateSecrets checks only the secret and salt.
func (c Config) ValidateSecrets() error {
	if c.Secret == "" {
		return &Error{Field: EnvSecret, Message: "secret is not set"}
	}
	if c.Salt == "" {
		return &Error{Field: EnvSalt, Message: "salt is not set"}
	}
	if _, err := codec.DecodeSalt(c.Salt); err != nil {
		return &Error{Field: EnvSalt, Message: "salt is not valid base64"}
	}
	return nil
}

// Location returns the configured timezone, UTC if it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolverConfig returns the resolver settings.
func (c Config) ResolverConfig() resolver.Config {
	return resolver.Config{
		GraceWindow:  time.Duration(c.GraceWindow),
		HistoryLimit: c.HistoryLimit,
		Location:     c.Location(),
	}
}

// RetentionPolicy returns the pruner thresholds.
func (c Config) RetentionPolicy() retention.Policy {
	return retention.Policy{
		TriviaDays:          c.Retention.TriviaDays,
		FactsDays:           c.Retention.FactsDays,
		LeaderboardIdleDays: c.Retention.LeaderboardIdleDays,
	}
}

// Codec derives the artifact key. This is the slow step.
func (c Config) Codec() (*codec.Codec, error) {
	if err := c.ValidateSecrets(); err != nil {
		return nil, err
	}
	return codec.New(c.Secret, c.Salt, c.KDFIterations)
}
