package events

import (
	"time"

	"github.com/mcdev12/trivia/go/internal/models"
)

// GameStartedPayload is the payload for a GameStarted event
type GameStartedPayload struct {
	GameID      string    `json:"game_id"`
	TotalRounds int       `json:"total_rounds"`
	Players     []string  `json:"players"`
	StartedAt   time.Time `json:"started_at"`
}

// QuestionStartedPayload is the payload for a QuestionStarted event. It never
// carries the correct answer.
type QuestionStartedPayload struct {
	Round       int       `json:"round"`
	TotalRounds int       `json:"total_rounds"`
	QuestionID  string    `json:"question_id,omitempty"`
	Text        string    `json:"text"`
	Options     []string  `json:"options"`
	TimeLimitMs int64     `json:"time_limit_ms"`
	StartedAt   time.Time `json:"started_at"`
	Deadline    time.Time `json:"deadline"`
}

// AnswerRecordedPayload is sent privately to the player who answered
type AnswerRecordedPayload struct {
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

// RoundClosedPayload is the payload for RoundSettling and RoundTimedOut events
type RoundClosedPayload struct {
	Round         int       `json:"round"`
	CorrectAnswer string    `json:"correct_answer"`
	Answered      int       `json:"answered"`
	Connected     int       `json:"connected"`
	NextRoundAt   time.Time `json:"next_round_at"`
}

// LeaderboardPayload is the payload for a LeaderboardUpdated event
type LeaderboardPayload struct {
	Round   int                       `json:"round"`
	Final   bool                      `json:"final"`
	Entries []models.LeaderboardEntry `json:"entries"`
}

// GameEndedPayload is the payload for a GameEnded event
type GameEndedPayload struct {
	GameID       string                    `json:"game_id"`
	RoundsPlayed int                       `json:"rounds_played"`
	TotalRounds  int                       `json:"total_rounds"`
	Aborted      bool                      `json:"aborted"`
	Reason       string                    `json:"reason,omitempty"`
	Winner       string                    `json:"winner,omitempty"`
	Leaderboard  []models.LeaderboardEntry `json:"leaderboard"`
	EndedAt      time.Time                 `json:"ended_at"`
}

// PlayerPresencePayload is the payload for PlayerJoined and PlayerLeft events
type PlayerPresencePayload struct {
	Player    string `json:"player"`
	Connected int    `json:"connected"`
}

// ErrorPayload reports a rejected request back to the player who sent it
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
