// Package history persists finished games and the all-time player statistics
// derived from them.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/trivia/go/internal/models"
)

// Store saves game results and answers all-time leaderboard queries.
type Store interface {
	SaveGame(ctx context.Context, result models.GameResult) error
	TopPlayers(ctx context.Context, limit int) ([]models.PlayerStats, error)
}

// Nop discards every result.
type Nop struct{}

func (Nop) SaveGame(context.Context, models.GameResult) error { return nil }

func (Nop) TopPlayers(context.Context, int) ([]models.PlayerStats, error) { return nil, nil }

// Memory keeps history in process. Nothing survives a restart.
type Memory struct {
	mu    sync.Mutex
	games []models.GameResult
	stats map[string]*models.PlayerStats
}

func NewMemory() *Memory {
	return &Memory{stats: make(map[string]*models.PlayerStats)}
}

func (m *Memory) SaveGame(ctx context.Context, result models.GameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.games = append(m.games, result)
	for _, entry := range result.Leaderboard {
		s, ok := m.stats[entry.Name]
		if !ok {
			s = &models.PlayerStats{Name: entry.Name}
			m.stats[entry.Name] = s
		}
		accumulate(s, entry, result.EndedAt)
	}
	return nil
}

func (m *Memory) TopPlayers(ctx context.Context, limit int) ([]models.PlayerStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	out := make([]models.PlayerStats, 0, len(m.stats))
	for _, s := range m.stats {
		out = append(out, *s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Games returns the saved results in save order.
func (m *Memory) Games() []models.GameResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.GameResult(nil), m.games...)
}

// accumulate folds one leaderboard row into a player's all-time stats.
// Only the first-ranked player of a game is credited with a win.
func accumulate(s *models.PlayerStats, entry models.LeaderboardEntry, at time.Time) {
	s.TotalScore += entry.Score
	s.GamesPlayed++
	if entry.Rank == 1 {
		s.Wins++
	}
	if s.GamesPlayed == 1 || entry.Score > s.BestScore {
		s.BestScore = entry.Score
	}
	s.AverageScore = float64(s.TotalScore) / float64(s.GamesPlayed)
	s.LastPlayed = at
}
