package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/trivia/internal/archive"
)

// NewImportCommand creates the import-db command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-db",
		Short: "Restore the database from the encrypted artifact",
		Long: `Decrypt the artifact and restore it into the database.

The leaderboard is replaced by the artifact's copy. Questions and facts
are inserted only when their key is not already stored. A gzip-only
artifact from an older release is accepted once and rewritten encrypted.

Exit codes:
  0 - Restored
  1 - Artifact could not be decrypted or decoded (database untouched)
  2 - Command error (missing artifact, invalid config)

Example:
  TRIVIA_DB_PASSWORD=... TRIVIA_DB_SALT=... trivia import-db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, cmd)
		},
	}
}

type importReport struct {
	archive.ImportResult
	Path string `json:"path"`
}

func (r importReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Imported %s\n", r.Path)
	if r.Legacy {
		fmt.Fprintln(w, "  legacy artifact upgraded to encrypted format")
	}
	fmt.Fprintf(w, "  snapshot:         %s\n", r.SnapshotID)
	fmt.Fprintf(w, "  leaderboard:      %d\n", r.Restored.Leaderboard)
	fmt.Fprintf(w, "  daily facts:      %d new\n", r.Restored.DailyFacts)
	fmt.Fprintf(w, "  trivia questions: %d new\n", r.Restored.TriviaQuestions)
}

func runImport(opts *RootOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, opts, runtimeOptions{secrets: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.archiver.Import(cmd.Context())
	if err != nil {
		return fail(rt.out, CodeArtifact, artifactExitCode(err), "import failed", err)
	}
	return rt.out.Success(importReport{ImportResult: res, Path: rt.archiver.Path()})
}

// NewExportCommand creates the export-db command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export-db",
		Short: "Write the database to the encrypted artifact",
		Long: `Snapshot the database and atomically replace the encrypted artifact.

A newly created database is first restored from the existing artifact so
an export never overwrites saved state with nothing.

Example:
  TRIVIA_DB_PASSWORD=... TRIVIA_DB_SALT=... trivia export-db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd)
		},
	}
}

type exportReport archive.ExportResult

func (r exportReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Exported %s (%d bytes)\n", r.Path, r.Bytes)
	fmt.Fprintf(w, "  snapshot:         %s\n", r.SnapshotID)
	fmt.Fprintf(w, "  leaderboard:      %d\n", r.Leaderboard)
	fmt.Fprintf(w, "  daily facts:      %d\n", r.DailyFacts)
	fmt.Fprintf(w, "  trivia questions: %d\n", r.TriviaQuestions)
}

func runExport(opts *RootOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, opts, runtimeOptions{secrets: true, warmStart: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.export(cmd.Context())
	if err != nil {
		return err
	}
	return rt.out.Success(exportReport(*res))
}
