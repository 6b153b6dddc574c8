package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/trivia/internal/archive"
	"github.com/roach88/trivia/internal/clock"
	"github.com/roach88/trivia/internal/config"
	"github.com/roach88/trivia/internal/store"
)

// runtimeOptions selects what openRuntime prepares.
type runtimeOptions struct {
	// secrets makes a missing secret or salt a command error.
	secrets bool

	// warmStart hydrates a newly created database from the artifact.
	warmStart bool
}

// runtime is the state shared by commands that touch the database.
type runtime struct {
	cfg    config.Config
	store  *store.Store
	clock  clock.Clock
	logger *slog.Logger
	out    *OutputFormatter

	// archiver is nil when no secret is configured.
	archiver *archive.Archiver
}

// newLogger builds the stderr text logger, at debug level with --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// fail reports err in a JSON envelope (text mode leaves printing to main)
// and returns it as an ExitError.
func fail(out *OutputFormatter, code string, exit int, message string, err error) error {
	if out.Format == "json" {
		var details any
		if err != nil {
			details = err.Error()
		}
		_ = out.Error(code, message, details)
	}
	return WrapExitError(exit, message, err)
}

// openRuntime loads configuration, opens the database and, when secrets
// are configured, prepares the archiver.
func openRuntime(cmd *cobra.Command, opts *RootOptions, ro runtimeOptions) (*runtime, error) {
	out := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	getenv := opts.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	cfg, err := config.Load(opts.Config, getenv)
	if err != nil {
		return nil, fail(out, CodeConfig, ExitCommandError, "failed to load config", err)
	}
	if err := cfg.ValidateSettings(); err != nil {
		return nil, fail(out, CodeConfig, ExitCommandError, "invalid config", err)
	}
	secretsErr := cfg.ValidateSecrets()
	if ro.secrets && secretsErr != nil {
		return nil, fail(out, CodeConfig, ExitCommandError, "artifact secrets are required", secretsErr)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}

	logger.Debug("opening database", "path", cfg.DatabasePath)
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fail(out, CodeStore, ExitCommandError, "failed to open database", err)
	}

	rt := &runtime{cfg: cfg, store: st, clock: clk, logger: logger, out: out}
	if secretsErr == nil {
		c, err := cfg.Codec()
		if err != nil {
			rt.Close()
			return nil, fail(out, CodeConfig, ExitCommandError, "failed to derive artifact key", err)
		}
		rt.archiver = archive.New(cfg.ArtifactPath, c, st,
			archive.WithClock(clk),
			archive.WithLocation(cfg.Location()),
			archive.WithLogger(logger),
		)
		if ro.warmStart && st.Created() && rt.archiver.WarmStart(cmd.Context()) {
			logger.Info("database restored from artifact", "path", cfg.ArtifactPath)
		}
	} else if ro.warmStart && st.Created() {
		logger.Warn("new database and artifact secrets are not configured, not restoring from artifact",
			"path", cfg.ArtifactPath, "error", secretsErr)
	} else {
		logger.Debug("artifact secrets not configured, skipping artifact", "error", secretsErr)
	}
	return rt, nil
}

// Close closes the database, logging any error.
func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("error closing database", "error", err)
	}
}

// export writes a fresh artifact. It is a no-op without an archiver.
func (rt *runtime) export(ctx context.Context) (*archive.ExportResult, error) {
	if rt.archiver == nil {
		return nil, nil
	}
	res, err := rt.archiver.Export(ctx)
	if err != nil {
		return nil, fail(rt.out, CodeArtifact, ExitFailure, "failed to export artifact", err)
	}
	return &res, nil
}

// artifactExitCode maps archive errors to exit codes.
func artifactExitCode(err error) int {
	if errors.Is(err, archive.ErrArtifactNotFound) {
		return ExitCommandError
	}
	return ExitFailure
}
