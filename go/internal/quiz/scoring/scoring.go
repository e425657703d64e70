// Package scoring turns answers into points and ranks players.
package scoring

import (
	"math"
	"sort"

	"github.com/mcdev12/trivia/go/internal/models"
)

const (
	// DefaultBasePoints is awarded for any correct answer inside the window.
	DefaultBasePoints = 10
	// MaxTimeBonusMultiplier caps the speed bonus at half of the base points.
	MaxTimeBonusMultiplier = 0.5
	// StreakBonusPerLevel is added for every prior consecutive correct answer.
	StreakBonusPerLevel = 2
	// MaxStreakBonusLevels caps the streak bonus at +10.
	MaxStreakBonusLevels = 5
)

// Result is the outcome of scoring a single answer.
type Result struct {
	Points      int `json:"points"`
	TimeBonus   int `json:"time_bonus"`
	StreakBonus int `json:"streak_bonus"`
	NewStreak   int `json:"new_streak"`
}

// Score computes the points for one answer. Incorrect answers, including answers
// that missed the window, award nothing and reset the streak. The streak bonus
// uses the streak as it was before this answer.
func Score(correct bool, elapsedMs, timeLimitMs int64, basePoints, currentStreak int) Result {
	if !correct {
		return Result{}
	}

	if elapsedMs < 0 {
		elapsedMs = 0
	}
	ratio := 0.0
	if timeLimitMs > 0 {
		ratio = math.Max(0, 1-float64(elapsedMs)/float64(timeLimitMs))
	}
	timeBonus := int(math.Floor(float64(basePoints) * ratio * MaxTimeBonusMultiplier))

	level := currentStreak
	if level > MaxStreakBonusLevels {
		level = MaxStreakBonusLevels
	}
	if level < 0 {
		level = 0
	}
	streakBonus := level * StreakBonusPerLevel

	return Result{
		Points:      basePoints + timeBonus + streakBonus,
		TimeBonus:   timeBonus,
		StreakBonus: streakBonus,
		NewStreak:   currentStreak + 1,
	}
}

// Leaderboard orders players by descending score. Ties keep join order.
func Leaderboard(players []models.Player) []models.LeaderboardEntry {
	sorted := make([]models.Player, len(players))
	copy(sorted, players)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].JoinSeq < sorted[j].JoinSeq
	})
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	entries := make([]models.LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = models.LeaderboardEntry{
			Rank:   i + 1,
			Name:   p.Name,
			Score:  p.Score,
			Streak: p.Streak,
		}
	}
	return entries
}
