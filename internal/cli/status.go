package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/trivia/internal/store"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show schema version and row counts",
		Long: `Report the database schema version, per-table row counts, the latest
question key and whether the artifact exists. Secrets are optional; without
them the database is not restored from the artifact.

Example:
  trivia status --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

type statusReport struct {
	Database        string       `json:"database"`
	SchemaVersion   int          `json:"schema_version"`
	Counts          store.Counts `json:"counts"`
	LatestQuestion  string       `json:"latest_question,omitempty"`
	Artifact        string       `json:"artifact"`
	ArtifactPresent bool         `json:"artifact_present"`
}

func (r statusReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Database:  %s (schema v%d)\n", r.Database, r.SchemaVersion)
	artifact := "missing"
	if r.ArtifactPresent {
		artifact = "present"
	}
	fmt.Fprintf(w, "Artifact:  %s (%s)\n", r.Artifact, artifact)
	fmt.Fprintf(w, "Leaderboard:      %d\n", r.Counts.Leaderboard)
	fmt.Fprintf(w, "Daily facts:      %d\n", r.Counts.DailyFacts)
	fmt.Fprintf(w, "Trivia questions: %d\n", r.Counts.TriviaQuestions)
	if r.LatestQuestion != "" {
		fmt.Fprintf(w, "Latest question:  %s\n", r.LatestQuestion)
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, opts, runtimeOptions{warmStart: true})
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	report := statusReport{Database: rt.cfg.DatabasePath, Artifact: rt.cfg.ArtifactPath}
	if report.SchemaVersion, err = rt.store.SchemaVersion(ctx); err != nil {
		return fail(rt.out, CodeStore, ExitFailure, "failed to read schema version", err)
	}
	if report.Counts, err = rt.store.Counts(ctx); err != nil {
		return fail(rt.out, CodeStore, ExitFailure, "failed to count rows", err)
	}
	latest, ok, err := rt.store.LatestTriviaQuestion(ctx)
	if err != nil {
		return fail(rt.out, CodeStore, ExitFailure, "failed to read latest question", err)
	}
	if ok {
		report.LatestQuestion = latest.Key
	}

	if _, err := os.Stat(rt.cfg.ArtifactPath); err == nil {
		report.ArtifactPresent = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		rt.logger.Warn("cannot stat artifact", "path", rt.cfg.ArtifactPath, "error", err)
	}
	return rt.out.Success(report)
}
