package coordinator

import (
	"context"
	"time"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/quiz/scoring"
)

// State is the lifecycle state of a game session.
type State string

const (
	StateIdle          State = "IDLE"
	StateRoundActive   State = "ROUND_ACTIVE"
	StateRoundSettling State = "ROUND_SETTLING"
	StateEnded         State = "ENDED"
)

// QuestionSource supplies the ordered question list for a game.
type QuestionSource interface {
	Load(ctx context.Context) ([]models.Question, error)
}

// HistoryStore receives the final result of every game that served a round.
type HistoryStore interface {
	SaveGame(ctx context.Context, result models.GameResult) error
}

// MinPlayersFloor is the fewest players a game can start with.
const MinPlayersFloor = 2

// Config holds the tunables of a session.
type Config struct {
	MinPlayers       int // raised to MinPlayersFloor when lower
	QuestionsPerGame int // 0 plays every loaded question
	BasePoints       int
	DefaultTimeLimit time.Duration
	SettleDelay      time.Duration
	LoadTimeout      time.Duration
	PersistTimeout   time.Duration
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		MinPlayers:       MinPlayersFloor,
		QuestionsPerGame: 0,
		BasePoints:       scoring.DefaultBasePoints,
		DefaultTimeLimit: 15 * time.Second,
		SettleDelay:      3 * time.Second,
		LoadTimeout:      10 * time.Second,
		PersistTimeout:   10 * time.Second,
	}
}

// Round is the question currently being played. A new Round replaces the old
// one on every advance.
type Round struct {
	Number     int
	Question   models.Question
	TimeLimit  time.Duration
	BasePoints int
	StartedAt  time.Time
}

// Deadline is the instant the answer window closes.
func (r Round) Deadline() time.Time {
	return r.StartedAt.Add(r.TimeLimit)
}

// Answer is a player's submission for a round. Round is optional; when set it
// must match the current round.
type Answer struct {
	Round  int    `json:"round"`
	Choice string `json:"choice"`
}

// AnswerResult is the scoring outcome reported back to the answering player.
type AnswerResult struct {
	Round        int    `json:"round"`
	Choice       string `json:"choice"`
	Correct      bool   `json:"correct"`
	MissedWindow bool   `json:"missed_window"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	Points       int    `json:"points"`
	TimeBonus    int    `json:"time_bonus"`
	StreakBonus  int    `json:"streak_bonus"`
	Streak       int    `json:"streak"`
	TotalScore   int    `json:"total_score"`
}

// SessionSnapshot is a point-in-time view of a session, safe to serialize.
type SessionSnapshot struct {
	SessionID      string                    `json:"session_id"`
	GameID         string                    `json:"game_id,omitempty"`
	State          State                     `json:"state"`
	Round          int                       `json:"round"`
	TotalRounds    int                       `json:"total_rounds"`
	RoundStartedAt *time.Time                `json:"round_started_at,omitempty"`
	Deadline       *time.Time                `json:"deadline,omitempty"`
	Aborted        bool                      `json:"aborted"`
	AbortReason    string                    `json:"abort_reason,omitempty"`
	Players        []models.Player           `json:"players"`
	Leaderboard    []models.LeaderboardEntry `json:"leaderboard"`
}
