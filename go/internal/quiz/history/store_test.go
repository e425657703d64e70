package history

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func game(id string, endedAt time.Time, rows ...models.LeaderboardEntry) models.GameResult {
	return models.GameResult{
		GameID:       id,
		SessionID:    "room",
		EndedAt:      endedAt,
		RoundsPlayed: 3,
		TotalRounds:  3,
		Leaderboard:  rows,
	}
}

func TestMemoryAggregatesStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	t1 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, m.SaveGame(ctx, game("g1", t1,
		models.LeaderboardEntry{Rank: 1, Name: "alice", Score: 30},
		models.LeaderboardEntry{Rank: 2, Name: "bob", Score: 10},
	)))
	require.NoError(t, m.SaveGame(ctx, game("g2", t2,
		models.LeaderboardEntry{Rank: 1, Name: "bob", Score: 40},
		models.LeaderboardEntry{Rank: 2, Name: "alice", Score: 0},
	)))

	top, err := m.TopPlayers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)

	bob := top[0]
	assert.Equal(t, "bob", bob.Name)
	assert.Equal(t, 50, bob.TotalScore)
	assert.Equal(t, 2, bob.GamesPlayed)
	assert.Equal(t, 1, bob.Wins)
	assert.Equal(t, 40, bob.BestScore)
	assert.InDelta(t, 25.0, bob.AverageScore, 1e-9)
	assert.Equal(t, t2, bob.LastPlayed)

	alice := top[1]
	assert.Equal(t, 30, alice.TotalScore)
	assert.Equal(t, 1, alice.Wins)
	assert.Equal(t, 30, alice.BestScore)

	top, err = m.TopPlayers(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
	assert.Len(t, m.Games(), 2)
}

func TestAccumulateFirstGameSetsBestScore(t *testing.T) {
	s := &models.PlayerStats{Name: "carol"}
	accumulate(s, models.LeaderboardEntry{Rank: 3, Name: "carol", Score: 0}, time.Time{})
	assert.Equal(t, 0, s.BestScore)
	assert.Equal(t, 0, s.Wins)
	assert.Equal(t, 1, s.GamesPlayed)
}

func TestStatsPipelineCreditsWinToRankOne(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := statsPipeline(models.LeaderboardEntry{Rank: 1, Name: "alice", Score: 12}, at)
	require.Len(t, p, 2)
	assert.Equal(t, "$set", p[0][0].Key)
	assert.Equal(t, "$set", p[1][0].Key)
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	require.NoError(t, s.SaveGame(context.Background(), models.GameResult{}))
	top, err := s.TopPlayers(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}
