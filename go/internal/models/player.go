package models

import "time"

// Player is a connected participant in a trivia session.
type Player struct {
	Name              string    `json:"name"`
	Score             int       `json:"score"`
	Streak            int       `json:"streak"`
	LastAnsweredRound int       `json:"last_answered_round"`
	JoinSeq           uint64    `json:"-"`
	JoinedAt          time.Time `json:"joined_at"`
}

// PlayerStats holds all-time aggregates for a player across finished games.
type PlayerStats struct {
	Name         string    `json:"name" bson:"playerName"`
	TotalScore   int       `json:"total_score" bson:"totalScore"`
	GamesPlayed  int       `json:"games_played" bson:"gamesPlayed"`
	Wins         int       `json:"wins" bson:"wins"`
	BestScore    int       `json:"best_score" bson:"bestScore"`
	AverageScore float64   `json:"average_score" bson:"averageScore"`
	LastPlayed   time.Time `json:"last_played" bson:"lastPlayed"`
}
