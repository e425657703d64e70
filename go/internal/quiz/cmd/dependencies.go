package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/trivia/go/internal/dbconfig"
	"github.com/mcdev12/trivia/go/internal/quiz/config"
	"github.com/mcdev12/trivia/go/internal/quiz/eventbus"
	"github.com/mcdev12/trivia/go/internal/quiz/history"
	"github.com/mcdev12/trivia/go/internal/quiz/questions"
	"github.com/rs/zerolog/log"
)

// Dependencies are the external backends the server talks to.
type Dependencies struct {
	Questions questions.Source
	History   history.Store
	Bus       *eventbus.JetStreamPublisher

	closers []func()
}

func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func setupDependencies(ctx context.Context, cfg config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	dbCfg := dbconfig.NewConfigFromEnv()

	src, err := setupQuestions(ctx, cfg, dbCfg, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Questions = src

	store, err := setupHistory(ctx, cfg, dbCfg, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.History = store

	if cfg.EventBus.Enabled {
		bus, err := eventbus.NewJetStreamPublisher(ctx, cfg.JetStream())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to set up event bus: %w", err)
		}
		deps.Bus = bus
		deps.closers = append(deps.closers, func() { bus.Close() })
	}
	return deps, nil
}

func setupQuestions(ctx context.Context, cfg config.Config, dbCfg dbconfig.Config, deps *Dependencies) (questions.Source, error) {
	var src questions.Source
	switch cfg.Questions.Source {
	case config.SourcePostgres:
		pool, err := pgxpool.New(ctx, dbCfg.PoolDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to question bank: %w", err)
		}
		deps.closers = append(deps.closers, pool.Close)
		src = questions.NewPostgresSource(pool, cfg.Game.QuestionsPerGame)
		log.Info().Str("database", dbCfg.Database).Msg("serving questions from postgres")
	default:
		src = questions.NewFileSource(cfg.Questions.Path)
		log.Info().Str("path", cfg.Questions.Path).Msg("serving questions from file")
	}
	if cfg.Questions.Shuffle {
		src = questions.Shuffled(src, rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return src, nil
}

func setupHistory(ctx context.Context, cfg config.Config, dbCfg dbconfig.Config, deps *Dependencies) (history.Store, error) {
	switch cfg.History.Backend {
	case config.HistoryPostgres:
		store, err := history.OpenPostgres(ctx, dbCfg.DSN(), dbCfg.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to history database: %w", err)
		}
		deps.closers = append(deps.closers, func() { store.Close() })
		if cfg.History.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil
	case config.HistoryMongo:
		store, err := history.ConnectMongo(ctx, cfg.History.MongoURI, cfg.History.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to history database: %w", err)
		}
		deps.closers = append(deps.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			store.Close(closeCtx)
		})
		return store, nil
	case config.HistoryNone:
		return history.Nop{}, nil
	default:
		return history.NewMemory(), nil
	}
}
