package questions

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/rs/zerolog/log"
)

const selectQuestions = `
	SELECT id, text, options, correct_answer, time_limit_ms, base_points
	FROM questions
	ORDER BY position, id
	LIMIT $1`

// PostgresSource reads the question bank from Postgres.
type PostgresSource struct {
	pool  *pgxpool.Pool
	limit int
}

// NewPostgresSource serves at most limit questions per game; limit <= 0 means all.
func NewPostgresSource(pool *pgxpool.Pool, limit int) *PostgresSource {
	return &PostgresSource{pool: pool, limit: limit}
}

func (s *PostgresSource) Load(ctx context.Context) ([]models.Question, error) {
	var limit interface{}
	if s.limit > 0 {
		limit = s.limit
	}

	rows, err := s.pool.Query(ctx, selectQuestions, limit)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	qs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Question, error) {
		var q models.Question
		err := row.Scan(&q.ID, &q.Text, &q.Options, &q.CorrectAnswer, &q.TimeLimitMs, &q.BasePoints)
		return q, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan questions: %w", err)
	}

	log.Debug().
		Int("questions", len(qs)).
		Msg("loaded questions from postgres")
	return qs, nil
}
