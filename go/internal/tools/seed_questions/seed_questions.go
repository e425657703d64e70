package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/trivia/go/internal/dbconfig"
	"github.com/mcdev12/trivia/go/internal/quiz/questions"
)

const createQuestions = `
CREATE TABLE IF NOT EXISTS questions (
  id             TEXT PRIMARY KEY,
  position       INT NOT NULL,
  text           TEXT NOT NULL,
  options        TEXT[] NOT NULL,
  correct_answer TEXT NOT NULL,
  time_limit_ms  BIGINT NOT NULL DEFAULT 0,
  base_points    INT NOT NULL DEFAULT 0
)`

func main() {
	_ = godotenv.Load()

	path := "go/internal/assets/questions.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load and validate the question file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read questions: %v\n", err)
		os.Exit(1)
	}
	qs, err := questions.Parse(data, filepath.Ext(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse questions: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.PoolDSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, createQuestions); err != nil {
		fmt.Fprintf(os.Stderr, "create questions table: %v\n", err)
		os.Exit(1)
	}

	// 3) Upsert in file order and count
	var (
		total    = len(qs)
		inserted int
		updated  int
		errs     int
	)
	for i, q := range qs {
		var wasInserted bool
		err := pool.QueryRow(ctx, `
            INSERT INTO questions (
              id, position, text, options, correct_answer, time_limit_ms, base_points
            ) VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (id) DO UPDATE SET
              position = EXCLUDED.position,
              text = EXCLUDED.text,
              options = EXCLUDED.options,
              correct_answer = EXCLUDED.correct_answer,
              time_limit_ms = EXCLUDED.time_limit_ms,
              base_points = EXCLUDED.base_points
            RETURNING (xmax = 0)
        `,
			q.ID, i+1, q.Text, q.Options, q.CorrectAnswer, q.TimeLimitMs, q.BasePoints,
		).Scan(&wasInserted)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error upserting question %s: %v\n", q.ID, err)
			errs++
			continue
		}
		if wasInserted {
			inserted++
		} else {
			updated++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Questions seed complete: %d total, %d inserted, %d updated, %d errors\n",
		total, inserted, updated, errs,
	)
}
