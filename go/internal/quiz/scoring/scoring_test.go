package scoring

import (
	"testing"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreIncorrectAlwaysZero(t *testing.T) {
	for _, elapsed := range []int64{0, 1, 5000, 30000, 90000} {
		for _, streak := range []int{0, 1, 4, 12} {
			got := Score(false, elapsed, 30000, 10, streak)
			assert.Equal(t, Result{}, got, "elapsed=%d streak=%d", elapsed, streak)
		}
	}
}

func TestScoreInstantCorrect(t *testing.T) {
	got := Score(true, 0, 30000, 10, 0)
	assert.Equal(t, 15, got.Points)
	assert.Equal(t, 5, got.TimeBonus)
	assert.Equal(t, 0, got.StreakBonus)
	assert.Equal(t, 1, got.NewStreak)
}

func TestScoreAtLimitHasNoTimeBonus(t *testing.T) {
	got := Score(true, 30000, 30000, 10, 0)
	assert.Equal(t, 10, got.Points)
	assert.Equal(t, 0, got.TimeBonus)
	assert.Equal(t, 1, got.NewStreak)
}

func TestScoreStreakBonusCaps(t *testing.T) {
	got := Score(true, 0, 30000, 10, 10)
	assert.Equal(t, 10, got.StreakBonus)
	assert.Equal(t, 25, got.Points)
	assert.Equal(t, 11, got.NewStreak)

	got = Score(true, 0, 30000, 10, 3)
	assert.Equal(t, 6, got.StreakBonus)
	assert.Equal(t, 21, got.Points)
}

func TestScoreTimeBonusFloors(t *testing.T) {
	// 10 * 0.9 * 0.5 = 4.5
	got := Score(true, 1000, 10000, 10, 0)
	assert.Equal(t, 4, got.TimeBonus)
	assert.Equal(t, 14, got.Points)
}

func TestScoreDegenerateInputs(t *testing.T) {
	got := Score(true, -50, 10000, 10, 0)
	assert.Equal(t, 15, got.Points, "negative elapsed is treated as instant")

	got = Score(true, 100, 0, 10, 0)
	assert.Equal(t, 10, got.Points, "zero limit gives no time bonus")

	got = Score(true, 20000, 10000, 10, 0)
	assert.Equal(t, 0, got.TimeBonus)
}

func TestLeaderboardOrdersByScoreThenJoinOrder(t *testing.T) {
	players := []models.Player{
		{Name: "carol", Score: 0, JoinSeq: 3},
		{Name: "alice", Score: 14, JoinSeq: 1, Streak: 1},
		{Name: "bob", Score: 0, JoinSeq: 2},
		{Name: "dave", Score: 14, JoinSeq: 4},
	}

	board := Leaderboard(players)
	require.Len(t, board, 4)

	names := make([]string, len(board))
	for i, e := range board {
		names[i] = e.Name
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, []string{"alice", "dave", "bob", "carol"}, names)
	assert.Equal(t, 1, board[0].Streak)

	// input is not mutated
	assert.Equal(t, "carol", players[0].Name)
}

func TestLeaderboardIsDeterministic(t *testing.T) {
	players := []models.Player{
		{Name: "a", JoinSeq: 1},
		{Name: "b", JoinSeq: 2},
		{Name: "c", JoinSeq: 3},
	}
	first := Leaderboard(players)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Leaderboard(players))
	}
	assert.Empty(t, Leaderboard(nil))
}
