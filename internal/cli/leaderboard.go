package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/trivia/internal/scoring"
)

// LeaderboardOptions holds flags for the leaderboard command.
type LeaderboardOptions struct {
	*RootOptions
	Top int
}

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LeaderboardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top players",
		Long: `Rank players by current streak, then total correct answers, then user id.

Example:
  trivia leaderboard
  trivia leaderboard --top 10 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Top, "top", "n", scoring.DefaultTopN, "number of players to show")

	return cmd
}

// LeaderboardRow is one ranked player.
type LeaderboardRow struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	Streak        int    `json:"streak"`
	StreakEmoji   string `json:"streak_emoji"`
	TotalCorrect  int    `json:"total_correct"`
	TotalAnswered int    `json:"total_answered"`
	TotalPoints   int    `json:"total_points"`

	// DaysUntilBonus counts correct days until the next multiplier bonus.
	DaysUntilBonus int `json:"days_until_bonus"`
}

type leaderboardReport struct {
	Players int              `json:"players"`
	Top     []LeaderboardRow `json:"top"`
}

func (r leaderboardReport) RenderText(w io.Writer) {
	if len(r.Top) == 0 {
		fmt.Fprintln(w, "No answers yet.")
		return
	}
	for _, row := range r.Top {
		fmt.Fprintf(w, "%d. %s %s streak %d, %s (%d/%d correct)\n",
			row.Rank, row.UserID, row.StreakEmoji, row.Streak,
			scoring.FormatPoints(row.TotalPoints), row.TotalCorrect, row.TotalAnswered)
	}
	fmt.Fprintf(w, "\n%d players\n", r.Players)
}

func runLeaderboard(opts *LeaderboardOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, opts.RootOptions, runtimeOptions{warmStart: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	board, err := rt.store.Leaderboard(cmd.Context())
	if err != nil {
		return fail(rt.out, CodeStore, ExitFailure, "failed to read leaderboard", err)
	}

	top := scoring.Top(board, opts.Top)
	report := leaderboardReport{Players: len(board), Top: make([]LeaderboardRow, 0, len(top))}
	for i, e := range top {
		bonus := scoring.StreakBonusInfo(e.CurrentStreak)
		report.Top = append(report.Top, LeaderboardRow{
			Rank:           i + 1,
			UserID:         e.UserID,
			Streak:         e.CurrentStreak,
			StreakEmoji:    scoring.StreakEmoji(e.CurrentStreak),
			TotalCorrect:   e.TotalCorrect,
			TotalAnswered:  e.TotalAnswered,
			TotalPoints:    e.TotalPoints,
			DaysUntilBonus: min(bonus.DaysUntilNext3Bonus, bonus.DaysUntilNext6Bonus),
		})
	}
	return rt.out.Success(report)
}
