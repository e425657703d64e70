package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/quiz/config"
	"github.com/mcdev12/trivia/go/internal/quiz/coordinator"
	"github.com/mcdev12/trivia/go/internal/quiz/events"
	"github.com/mcdev12/trivia/go/internal/quiz/gateway"
	"github.com/mcdev12/trivia/go/internal/quiz/lobby"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var CLI struct {
	Debug  bool   `help:"Enable debug logging."`
	Config string `help:"YAML configuration file." type:"path" env:"QUIZ_CONFIG"`
	Addr   string `help:"Listen address, overrides the config file."`

	Serve struct {
	} `cmd:"" default:"1" help:"Run the trivia server."`

	DefaultConfig struct {
	} `cmd:"" name:"default-config" help:"Write the default configuration to standard output."`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx := kong.Parse(&CLI,
		kong.Name("quiz"),
		kong.Description("live multiplayer trivia server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	switch ctx.Command() {
	case "default-config":
		data, err := config.DefaultYAML()
		ctx.FatalIfErrorf(err)
		os.Stdout.Write(data)
	default:
		if err := serve(); err != nil {
			log.Fatal().Err(err).Msg("quiz server failed")
		}
	}
}

func serve() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if CLI.Addr != "" {
		cfg.Server.Addr = CLI.Addr
	}
	setLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setupDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	clock := clockwork.NewRealClock()
	cm := gateway.NewConnectionManager(cfg.Connection())
	sessionCfg := cfg.Coordinator()

	quizLobby := lobby.New(func(sessionID string) *coordinator.Coordinator {
		sink := events.Fanout{gateway.NewSessionBroadcaster(sessionID, cm)}
		if deps.Bus != nil {
			sink = append(sink, deps.Bus)
		}
		return coordinator.New(sessionID, sessionCfg, deps.Questions, deps.History, sink, clock)
	})
	defer quizLobby.Shutdown()

	svc := gateway.NewService(cm, quizLobby, deps.History, clock)
	go svc.Start(ctx)
	if deps.Bus != nil {
		go deps.Bus.Run(ctx)
	}

	server := setupServer(cfg, svc)
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("questions", cfg.Questions.Source).
			Str("history", cfg.History.Backend).
			Bool("event_bus", deps.Bus != nil).
			Msg("starting quiz server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down quiz server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down http server")
	}
	return nil
}

func setLogLevel(level string) {
	if CLI.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		log.Warn().Str("log_level", level).Msg("unknown log level, using info")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
