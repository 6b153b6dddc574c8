package scoring

import (
	"fmt"
	"sort"

	"github.com/roach88/trivia/internal/model"
)

// DefaultTopN is the number of entries shown on the public leaderboard.
const DefaultTopN = 5

// FormatPoints renders a point count with the right plural.
func FormatPoints(points int) string {
	if points == 1 {
		return "1 point"
	}
	return fmt.Sprintf("%d points", points)
}

// StreakEmoji returns a flame gauge for the streak length.
func StreakEmoji(streak int) string {
	switch {
	case streak <= 0:
		return "❄️"
	case streak < 3:
		return "🔥"
	case streak < 6:
		return "🔥🔥"
	case streak < 12:
		return "🔥🔥🔥"
	case streak < 18:
		return "🔥🔥🔥🔥"
	default:
		return "🔥🔥🔥🔥🔥"
	}
}

// Top returns up to n entries ranked by current streak, then total correct,
// both descending, with user id ascending as the final tie-break.
// A non-positive n uses DefaultTopN. The input map is not modified.
func Top(entries map[string]model.LeaderboardEntry, n int) []model.LeaderboardEntry {
	if n <= 0 {
		n = DefaultTopN
	}
	ranked := make([]model.LeaderboardEntry, 0, len(entries))
	for id, e := range entries {
		if e.UserID == "" {
			e.UserID = id
		}
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CurrentStreak != b.CurrentStreak {
			return a.CurrentStreak > b.CurrentStreak
		}
		if a.TotalCorrect != b.TotalCorrect {
			return a.TotalCorrect > b.TotalCorrect
		}
		return a.UserID < b.UserID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
