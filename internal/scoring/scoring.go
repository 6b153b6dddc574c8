// Package scoring maps streak lengths to points.
//
// Every function here is pure: no storage, no clock, no logging. The resolver
// and the CLI both call into it so that the points a user is credited with and
// the bonus hints they are shown can never disagree.
package scoring

// Bonus periods. A streak that is a multiple of BonusPeriodShort earns one
// extra point; a multiple of BonusPeriodLong earns one more on top.
const (
	BonusPeriodShort = 3
	BonusPeriodLong  = 6
)

// PointsForStreak returns the points credited for a correct answer that
// brings the user's streak to streak.
//
//	streak <= 0           -> 0
//	streak % 6 == 0       -> 3
//	streak % 3 == 0       -> 2
//	otherwise             -> 1
func PointsForStreak(streak int) int {
	if streak <= 0 {
		return 0
	}
	points := 1
	if streak%BonusPeriodShort == 0 {
		points++
	}
	if streak%BonusPeriodLong == 0 {
		points++
	}
	return points
}

// TotalForRun returns the sum of PointsForStreak(1..n), the total earned by
// n consecutive correct answers starting from a zero streak.
func TotalForRun(n int) int {
	total := 0
	for s := 1; s <= n; s++ {
		total += PointsForStreak(s)
	}
	return total
}

// BonusInfo describes a streak for user-facing messaging.
type BonusInfo struct {
	CurrentPoints       int  `json:"current_points"`
	DaysUntilNext3Bonus int  `json:"days_until_next_3_bonus"`
	DaysUntilNext6Bonus int  `json:"days_until_next_6_bonus"`
	Has3Bonus           bool `json:"has_3_bonus"`
	Has6Bonus           bool `json:"has_6_bonus"`
}

// StreakBonusInfo reports the points earned at streak and how many more
// correct days are needed to reach the next bonus of each period.
//
// The countdowns are always in [1, period]: a streak sitting on a bonus day
// reports the full period until the next one.
func StreakBonusInfo(streak int) BonusInfo {
	s := max(streak, 0)
	return BonusInfo{
		CurrentPoints:       PointsForStreak(streak),
		DaysUntilNext3Bonus: BonusPeriodShort - s%BonusPeriodShort,
		DaysUntilNext6Bonus: BonusPeriodLong - s%BonusPeriodLong,
		Has3Bonus:           s > 0 && s%BonusPeriodShort == 0,
		Has6Bonus:           s > 0 && s%BonusPeriodLong == 0,
	}
}
