package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/trivia/internal/archive"
	"github.com/roach88/trivia/internal/retention"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	TriviaDays int
	FactsDays  int
	IdleDays   int
	NoExport   bool
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old questions, facts and idle leaderboard entries",
		Long: `Apply the retention policy.

Questions and facts dated before today minus the threshold are deleted;
a row dated exactly on the cutoff day is kept. Leaderboard entries whose
last answer is older than the idle threshold are deleted. Thresholds come
from the config file unless overridden by flags.

With --no-export the artifact still holds the pruned rows until the next
export. Only a newly created database is restored from the artifact, so an
existing database emptied by a prune stays empty.

Example:
  trivia prune
  trivia prune --facts-days 7 --no-export`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.TriviaDays, "trivia-days", retention.DefaultTriviaDays, "keep questions this many days")
	cmd.Flags().IntVar(&opts.FactsDays, "facts-days", retention.DefaultFactsDays, "keep facts this many days")
	cmd.Flags().IntVar(&opts.IdleDays, "idle-days", retention.DefaultLeaderboardIdleDays, "drop users idle this many days")
	cmd.Flags().BoolVar(&opts.NoExport, "no-export", false, "skip writing the artifact afterwards")

	return cmd
}

type pruneReport struct {
	Policy  retention.Policy      `json:"policy"`
	Deleted retention.Result      `json:"deleted"`
	Export  *archive.ExportResult `json:"export,omitempty"`
}

func (r pruneReport) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Deleted %d trivia questions older than %d days\n", r.Deleted.TriviaQuestions, r.Policy.TriviaDays)
	fmt.Fprintf(w, "Deleted %d daily facts older than %d days\n", r.Deleted.DailyFacts, r.Policy.FactsDays)
	fmt.Fprintf(w, "Deleted %d leaderboard entries idle for %d days\n", r.Deleted.Leaderboard, r.Policy.LeaderboardIdleDays)
	if r.Export != nil {
		fmt.Fprintf(w, "Exported %s\n", r.Export.Path)
	}
}

func runPrune(opts *PruneOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, opts.RootOptions, runtimeOptions{secrets: !opts.NoExport, warmStart: true})
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	policy := rt.cfg.RetentionPolicy()
	flags := cmd.Flags()
	if flags.Changed("trivia-days") {
		policy.TriviaDays = opts.TriviaDays
	}
	if flags.Changed("facts-days") {
		policy.FactsDays = opts.FactsDays
	}
	if flags.Changed("idle-days") {
		policy.LeaderboardIdleDays = opts.IdleDays
	}

	pruner := retention.New(rt.store,
		retention.WithClock(rt.clock),
		retention.WithLocation(rt.cfg.Location()),
		retention.WithLogger(rt.logger),
	)
	deleted, err := pruner.RunAll(ctx, policy)
	if err != nil {
		return fail(rt.out, CodeStore, ExitFailure, "prune failed", err)
	}

	report := pruneReport{Policy: policy, Deleted: deleted}
	if !opts.NoExport {
		if report.Export, err = rt.export(ctx); err != nil {
			return err
		}
	}
	return rt.out.Success(report)
}
