package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/trivia/internal/archive"
	"github.com/roach88/trivia/internal/intake"
	"github.com/roach88/trivia/internal/resolver"
	"github.com/roach88/trivia/internal/scoring"
)

// ProcessAnswersOptions holds flags for the process-answers command.
type ProcessAnswersOptions struct {
	*RootOptions
	QuestionKey string
	NoExport    bool
}

// NewProcessAnswersCommand creates the process-answers command.
func NewProcessAnswersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProcessAnswersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process-answers <submissions.yaml>",
		Short: "Score a batch of answer submissions",
		Long: `Resolve a YAML batch of answer submissions in order and update the
leaderboard.

Entries name a label directly or carry an issue title/body from which the
label is parsed ("Trivia Answer B", "I choose B"). Entries without a
recognizable label, and entries left over when the batch stops on a
storage error, are reported as unplanned.

Submissions without a question key answer --question-key, or the latest
stored question when the flag is not set.

Exit codes:
  0 - Batch resolved (rejections and duplicates are not failures)
  1 - Storage failure part way through; see the unplanned list
  2 - Command error (unreadable batch, invalid config)

Example:
  trivia process-answers answers.yaml
  trivia process-answers answers.yaml --question-key 2024-03-01 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessAnswers(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.QuestionKey, "question-key", "", "question answered by entries that do not name one")
	cmd.Flags().BoolVar(&opts.NoExport, "no-export", false, "skip writing the artifact afterwards")

	return cmd
}

type answersReport struct {
	resolver.BatchResult
	Export *archive.ExportResult `json:"export,omitempty"`
}

func (r answersReport) RenderText(w io.Writer) {
	for _, res := range r.Results {
		fmt.Fprintln(w, describeOutcome(res))
	}
	for _, sub := range r.Unplanned {
		fmt.Fprintf(w, "? %s %s: unplanned", sub.UserID, sub.QuestionKey)
		if sub.Ref != "" {
			fmt.Fprintf(w, " (%s)", sub.Ref)
		}
		fmt.Fprintln(w)
	}

	counts := r.Counts()
	rejected := counts[resolver.KindInvalidUser] + counts[resolver.KindInvalidLabel] + counts[resolver.KindUnknownQuestion]
	fmt.Fprintf(w, "\n%d accepted, %d duplicate, %d rejected, %d unplanned\n",
		counts[resolver.KindAccepted], counts[resolver.KindDuplicate], rejected, len(r.Unplanned))
	if r.Export != nil {
		fmt.Fprintf(w, "Exported %s\n", r.Export.Path)
	}
}

func describeOutcome(res resolver.Result) string {
	out := res.Outcome
	switch {
	case out.Kind == resolver.KindAccepted && out.Correct:
		return fmt.Sprintf("✓ %s %s: correct, +%s, streak %d %s",
			out.UserID, out.QuestionKey, scoring.FormatPoints(out.PointsEarned), out.Streak, scoring.StreakEmoji(out.Streak))
	case out.Kind == resolver.KindAccepted:
		return fmt.Sprintf("✗ %s %s: incorrect, streak reset", out.UserID, out.QuestionKey)
	case out.Kind == resolver.KindDuplicate:
		return fmt.Sprintf("- %s %s: duplicate (%s)", out.UserID, out.QuestionKey, out.Reason)
	default:
		return fmt.Sprintf("- %s %s: %s", out.UserID, out.QuestionKey, out.Kind)
	}
}

func runProcessAnswers(opts *ProcessAnswersOptions, path string, cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, opts.RootOptions, runtimeOptions{secrets: !opts.NoExport, warmStart: true})
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	key := opts.QuestionKey
	if key == "" {
		latest, ok, err := rt.store.LatestTriviaQuestion(ctx)
		if err != nil {
			return fail(rt.out, CodeStore, ExitFailure, "failed to read latest question", err)
		}
		if ok {
			key = latest.Key
		}
	}

	batch, err := intake.LoadSubmissions(path, key)
	if err != nil {
		return fail(rt.out, CodeInput, ExitCommandError, "failed to read submissions", err)
	}
	rt.logger.Debug("submissions loaded",
		"path", path,
		"ready", len(batch.Ready),
		"unparseable", len(batch.Unparseable),
	)

	r := resolver.New(rt.store, rt.cfg.ResolverConfig(),
		resolver.WithClock(rt.clock),
		resolver.WithLogger(rt.logger),
	)
	res, batchErr := r.ProcessBatch(ctx, batch.Ready)
	res.MarkUnplanned(batch.Unparseable...)
	report := answersReport{BatchResult: res}

	if batchErr != nil {
		if opts.Format == "json" {
			_ = rt.out.Error(CodeBatch, "batch stopped", report)
		} else {
			report.RenderText(rt.out.Writer)
		}
		return WrapExitError(ExitFailure, "batch stopped", batchErr)
	}

	if !opts.NoExport {
		if report.Export, err = rt.export(ctx); err != nil {
			return err
		}
	}
	return rt.out.Success(report)
}
