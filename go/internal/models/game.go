package models

import "time"

// LeaderboardEntry is one ranked row of a leaderboard. Rank is the 1-based position.
type LeaderboardEntry struct {
	Rank   int    `json:"rank" bson:"rank"`
	Name   string `json:"name" bson:"playerName"`
	Score  int    `json:"score" bson:"score"`
	Streak int    `json:"streak" bson:"streak"`
}

// GameResult is handed to persistence once a game reaches the ended state.
type GameResult struct {
	GameID       string             `json:"game_id" bson:"gameId"`
	SessionID    string             `json:"session_id" bson:"sessionId"`
	StartedAt    time.Time          `json:"started_at" bson:"startedAt"`
	EndedAt      time.Time          `json:"ended_at" bson:"endedAt"`
	RoundsPlayed int                `json:"rounds_played" bson:"roundsPlayed"`
	TotalRounds  int                `json:"total_rounds" bson:"totalRounds"`
	Aborted      bool               `json:"aborted" bson:"aborted"`
	AbortReason  string             `json:"abort_reason,omitempty" bson:"abortReason,omitempty"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard" bson:"players"`
}

// Winner returns the top entry of the leaderboard, if any.
func (r GameResult) Winner() (LeaderboardEntry, bool) {
	if len(r.Leaderboard) == 0 {
		return LeaderboardEntry{}, false
	}
	return r.Leaderboard[0], true
}
