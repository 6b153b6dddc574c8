package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/trivia/internal/archive"
	"github.com/roach88/trivia/internal/intake"
	"github.com/roach88/trivia/internal/model"
)

// ContentOptions holds flags shared by add-question and add-fact.
type ContentOptions struct {
	*RootOptions
	Key      string
	NoExport bool
}

func addContentFlags(cmd *cobra.Command, opts *ContentOptions) {
	cmd.Flags().StringVar(&opts.Key, "key", "", "storage key (default: today's date in the configured timezone)")
	cmd.Flags().BoolVar(&opts.NoExport, "no-export", false, "skip writing the artifact afterwards")
}

// NewAddQuestionCommand creates the add-question command.
func NewAddQuestionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add-question [question.json|-]",
		Short: "Validate and store a generated trivia question",
		Long: `Validate a generated question and store it under a key.

The input is the JSON object produced by the completion service, optionally
wrapped in a Markdown code fence:

  {"question": "...", "options": {"A": "...", "B": "...", "C": "..."},
   "correct_answer": "B", "explanation": "..."}

It is read from the named file, or stdin when the argument is "-" or
absent. A key that already has a question is left unchanged.

Example:
  trivia add-question question.json
  generate-question | trivia add-question --key 2024-03-01`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddQuestion(opts, args, cmd)
		},
	}
	addContentFlags(cmd, opts)
	return cmd
}

// NewAddFactCommand creates the add-fact command.
func NewAddFactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add-fact <text>...",
		Short: "Store the daily fact",
		Long: `Store a daily fact under a key. Arguments are joined with spaces.
A key that already has a fact is left unchanged.

Example:
  trivia add-fact "Honey never spoils."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddFact(opts, strings.Join(args, " "), cmd)
		},
	}
	addContentFlags(cmd, opts)
	return cmd
}

type contentReport struct {
	Kind     string                `json:"kind"`
	Key      string                `json:"key"`
	Inserted bool                  `json:"inserted"`
	Export   *archive.ExportResult `json:"export,omitempty"`
}

func (r contentReport) RenderText(w io.Writer) {
	if r.Inserted {
		fmt.Fprintf(w, "Stored %s %s\n", r.Kind, r.Key)
	} else {
		fmt.Fprintf(w, "A %s for %s already exists, left unchanged\n", r.Kind, r.Key)
	}
	if r.Export != nil {
		fmt.Fprintf(w, "Exported %s\n", r.Export.Path)
	}
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func runAddQuestion(opts *ContentOptions, args []string, cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, opts.RootOptions, runtimeOptions{secrets: !opts.NoExport, warmStart: true})
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	raw, err := readInput(cmd, args)
	if err != nil {
		return fail(rt.out, CodeInput, ExitCommandError, "failed to read question", err)
	}

	now := rt.clock.Now()
	key := opts.Key
	if key == "" {
		key = model.KeyForDate(now, rt.cfg.Location())
	}

	q, err := intake.ParseQuestion(raw, key, now)
	if err != nil {
		return invalidInput(rt.out, "invalid question", err)
	}
	inserted, err := rt.store.InsertQuestionIfAbsent(ctx, q)
	if err != nil {
		return fail(rt.out, CodeStore, ExitFailure, "failed to store question", err)
	}
	rt.logger.Info("question stored", "question_key", key, "inserted", inserted)

	return finishContent(rt, cmd, contentReport{Kind: "question", Key: key, Inserted: inserted}, opts.NoExport)
}

func runAddFact(opts *ContentOptions, text string, cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, opts.RootOptions, runtimeOptions{secrets: !opts.NoExport, warmStart: true})
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	now := rt.clock.Now()
	key := opts.Key
	if key == "" {
		key = model.KeyForDate(now, rt.cfg.Location())
	}

	f, err := intake.NewFact(key, text, now)
	if err != nil {
		return invalidInput(rt.out, "invalid fact", err)
	}
	inserted, err := rt.store.InsertFactIfAbsent(ctx, f)
	if err != nil {
		return fail(rt.out, CodeStore, ExitFailure, "failed to store fact", err)
	}
	rt.logger.Info("fact stored", "key", key, "inserted", inserted)

	return finishContent(rt, cmd, contentReport{Kind: "fact", Key: key, Inserted: inserted}, opts.NoExport)
}

// invalidInput reports validation errors with their field in the JSON envelope.
func invalidInput(out *OutputFormatter, message string, err error) error {
	var verr *intake.ValidationError
	if out.Format == "json" && errors.As(err, &verr) {
		_ = out.Error(CodeInput, message, map[string]string{"field": verr.Field, "message": verr.Message})
		return WrapExitError(ExitCommandError, message, err)
	}
	return fail(out, CodeInput, ExitCommandError, message, err)
}

func finishContent(rt *runtime, cmd *cobra.Command, report contentReport, noExport bool) error {
	if report.Inserted && !noExport {
		var err error
		if report.Export, err = rt.export(cmd.Context()); err != nil {
			return err
		}
	}
	return rt.out.Success(report)
}
