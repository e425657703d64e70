package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// Schema creates the tables PostgresStore writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS game_history (
	game_id       TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	rounds_played INT NOT NULL,
	total_rounds  INT NOT NULL,
	aborted       BOOLEAN NOT NULL DEFAULT FALSE,
	abort_reason  TEXT,
	leaderboard   JSONB
);

CREATE TABLE IF NOT EXISTS player_stats (
	player_name   TEXT PRIMARY KEY,
	total_score   BIGINT NOT NULL,
	games_played  INT NOT NULL,
	wins          INT NOT NULL,
	best_score    INT NOT NULL,
	average_score DOUBLE PRECISION NOT NULL,
	last_played   TIMESTAMPTZ NOT NULL
);`

const insertGame = `
	INSERT INTO game_history (
	  game_id, session_id, started_at, ended_at, rounds_played,
	  total_rounds, aborted, abort_reason, leaderboard
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (game_id) DO NOTHING`

const upsertPlayerStats = `
	INSERT INTO player_stats (
	  player_name, total_score, games_played, wins, best_score, average_score, last_played
	) VALUES ($1, $2, 1, $3, $2, $2, $4)
	ON CONFLICT (player_name) DO UPDATE SET
	  total_score   = player_stats.total_score + EXCLUDED.total_score,
	  games_played  = player_stats.games_played + 1,
	  wins          = player_stats.wins + EXCLUDED.wins,
	  best_score    = GREATEST(player_stats.best_score, EXCLUDED.best_score),
	  average_score = (player_stats.total_score + EXCLUDED.total_score)::DOUBLE PRECISION
	                  / (player_stats.games_played + 1),
	  last_played   = EXCLUDED.last_played`

const selectTopPlayers = `
	SELECT player_name, total_score, games_played, wins, best_score, average_score, last_played
	FROM player_stats
	ORDER BY total_score DESC, player_name
	LIMIT $1`

// PostgresStore keeps history in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a lib/pq connection pool for dsn.
func OpenPostgres(ctx context.Context, dsn string, maxOpenConns int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the history tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// queries binds the statements of one save to a transaction.
type queries struct {
	tx *sql.Tx
}

func (q *queries) insertGame(ctx context.Context, result models.GameResult) error {
	board, err := sqlutil.ToNullJSON(result.Leaderboard)
	if err != nil {
		return err
	}
	_, err = q.tx.ExecContext(ctx, insertGame,
		result.GameID, result.SessionID, result.StartedAt, result.EndedAt, result.RoundsPlayed,
		result.TotalRounds, result.Aborted, sqlutil.ToNullString(result.AbortReason), board,
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", result.GameID, err)
	}
	return nil
}

func (q *queries) upsertPlayerStats(ctx context.Context, entry models.LeaderboardEntry, result models.GameResult) error {
	wins := 0
	if entry.Rank == 1 {
		wins = 1
	}
	if _, err := q.tx.ExecContext(ctx, upsertPlayerStats, entry.Name, entry.Score, wins, result.EndedAt); err != nil {
		return fmt.Errorf("upsert stats for %q: %w", entry.Name, err)
	}
	return nil
}

// SaveGame writes the game row and every player's stats in one transaction.
func (s *PostgresStore) SaveGame(ctx context.Context, result models.GameResult) error {
	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) *queries { return &queries{tx: tx} }, func(q *queries) error {
		if err := q.insertGame(ctx, result); err != nil {
			return err
		}
		for _, entry := range result.Leaderboard {
			if err := q.upsertPlayerStats(ctx, entry, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("game_id", result.GameID).
		Int("players", len(result.Leaderboard)).
		Msg("game saved to postgres")
	return nil
}

func (s *PostgresStore) TopPlayers(ctx context.Context, limit int) ([]models.PlayerStats, error) {
	rows, err := s.db.QueryContext(ctx, selectTopPlayers, limit)
	if err != nil {
		return nil, fmt.Errorf("query top players: %w", err)
	}
	defer rows.Close()

	var out []models.PlayerStats
	for rows.Next() {
		var p models.PlayerStats
		if err := rows.Scan(&p.Name, &p.TotalScore, &p.GamesPlayed, &p.Wins, &p.BestScore, &p.AverageScore, &p.LastPlayed); err != nil {
			return nil, fmt.Errorf("scan player stats: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
