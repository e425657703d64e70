// Package config loads the quiz server configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/trivia/go/internal/quiz/coordinator"
	"github.com/mcdev12/trivia/go/internal/quiz/eventbus"
	"github.com/mcdev12/trivia/go/internal/quiz/gateway"
	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"
)

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"

	HistoryNone     = "none"
	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"
	HistoryMongo    = "mongo"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Game struct {
		MinPlayers       int           `yaml:"min_players"`
		QuestionsPerGame int           `yaml:"questions_per_game"`
		BasePoints       int           `yaml:"base_points"`
		DefaultTimeLimit time.Duration `yaml:"default_time_limit"`
		SettleDelay      time.Duration `yaml:"settle_delay"`
		LoadTimeout      time.Duration `yaml:"load_timeout"`
		PersistTimeout   time.Duration `yaml:"persist_timeout"`
	} `yaml:"game"`

	Questions struct {
		Source  string `yaml:"source"`
		Path    string `yaml:"path"`
		Shuffle bool   `yaml:"shuffle"`
	} `yaml:"questions"`

	History struct {
		Backend       string `yaml:"backend"`
		EnsureSchema  bool   `yaml:"ensure_schema"`
		MongoURI      string `yaml:"mongo_uri"`
		MongoDatabase string `yaml:"mongo_database"`
	} `yaml:"history"`

	EventBus struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"event_bus"`

	Gateway struct {
		MessageRate    float64 `yaml:"message_rate"`
		MessageBurst   int     `yaml:"message_burst"`
		SendBufferSize int     `yaml:"send_buffer_size"`
	} `yaml:"gateway"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.LogLevel = "info"
	c.Server.Addr = ":8080"
	c.Server.AllowedOrigins = []string{"*"}

	game := coordinator.DefaultConfig()
	c.Game.MinPlayers = game.MinPlayers
	c.Game.QuestionsPerGame = game.QuestionsPerGame
	c.Game.BasePoints = game.BasePoints
	c.Game.DefaultTimeLimit = game.DefaultTimeLimit
	c.Game.SettleDelay = game.SettleDelay
	c.Game.LoadTimeout = game.LoadTimeout
	c.Game.PersistTimeout = game.PersistTimeout

	c.Questions.Source = SourceFile
	c.Questions.Path = "questions.json"

	c.History.Backend = HistoryMemory
	c.History.MongoDatabase = "trivia"

	bus := eventbus.DefaultJetStreamConfig()
	c.EventBus.URL = bus.URL
	c.EventBus.StreamName = bus.StreamName
	c.EventBus.SubjectPrefix = bus.SubjectPrefix

	conn := gateway.DefaultConnectionConfig()
	c.Gateway.MessageRate = conn.MessageRate
	c.Gateway.MessageBurst = conn.MessageBurst
	c.Gateway.SendBufferSize = conn.SendBufferSize
	return c
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	c.Server.Addr = getEnv("QUIZ_ADDR", c.Server.Addr)
	c.LogLevel = getEnv("QUIZ_LOG_LEVEL", c.LogLevel)
	c.Questions.Source = getEnv("QUIZ_QUESTIONS_SOURCE", c.Questions.Source)
	c.Questions.Path = getEnv("QUIZ_QUESTIONS_PATH", c.Questions.Path)
	c.History.Backend = getEnv("QUIZ_HISTORY_BACKEND", c.History.Backend)
	c.History.MongoURI = getEnv("MONGODB_URI", c.History.MongoURI)
	c.EventBus.URL = getEnv("NATS_URL", c.EventBus.URL)

	var err error
	if c.Game.MinPlayers, err = getEnvInt("QUIZ_MIN_PLAYERS", c.Game.MinPlayers); err != nil {
		return err
	}
	if c.Game.QuestionsPerGame, err = getEnvInt("QUIZ_QUESTIONS_PER_GAME", c.Game.QuestionsPerGame); err != nil {
		return err
	}
	if c.Game.DefaultTimeLimit, err = getEnvDuration("QUIZ_TIME_LIMIT", c.Game.DefaultTimeLimit); err != nil {
		return err
	}
	if c.Game.SettleDelay, err = getEnvDuration("QUIZ_SETTLE_DELAY", c.Game.SettleDelay); err != nil {
		return err
	}
	if c.EventBus.Enabled, err = getEnvBool("QUIZ_EVENT_BUS_ENABLED", c.EventBus.Enabled); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Game.MinPlayers < coordinator.MinPlayersFloor {
		errs = append(errs, fmt.Errorf("game.min_players must be at least %d, got %d", coordinator.MinPlayersFloor, c.Game.MinPlayers))
	}
	if c.Game.QuestionsPerGame < 0 {
		errs = append(errs, fmt.Errorf("game.questions_per_game must not be negative"))
	}
	if c.Game.DefaultTimeLimit <= 0 {
		errs = append(errs, fmt.Errorf("game.default_time_limit must be positive"))
	}
	if c.Game.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("game.settle_delay must not be negative"))
	}
	switch c.Questions.Source {
	case SourceFile:
		if c.Questions.Path == "" {
			errs = append(errs, fmt.Errorf("questions.path is required for the file source"))
		}
	case SourcePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown questions.source %q", c.Questions.Source))
	}
	switch c.History.Backend {
	case HistoryNone, HistoryMemory, HistoryPostgres:
	case HistoryMongo:
		if c.History.MongoURI == "" {
			errs = append(errs, fmt.Errorf("history.mongo_uri (or MONGODB_URI) is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history.backend %q", c.History.Backend))
	}
	return errors.Join(errs...)
}

// Coordinator returns the per-session settings.
func (c Config) Coordinator() coordinator.Config {
	return coordinator.Config{
		MinPlayers:       c.Game.MinPlayers,
		QuestionsPerGame: c.Game.QuestionsPerGame,
		BasePoints:       c.Game.BasePoints,
		DefaultTimeLimit: c.Game.DefaultTimeLimit,
		SettleDelay:      c.Game.SettleDelay,
		LoadTimeout:      c.Game.LoadTimeout,
		PersistTimeout:   c.Game.PersistTimeout,
	}
}

// Connection returns the WebSocket settings.
func (c Config) Connection() gateway.ConnectionConfig {
	conn := gateway.DefaultConnectionConfig()
	conn.MessageRate = c.Gateway.MessageRate
	conn.MessageBurst = c.Gateway.MessageBurst
	if c.Gateway.SendBufferSize > 0 {
		conn.SendBufferSize = c.Gateway.SendBufferSize
	}
	return conn
}

// JetStream returns the event bus settings.
func (c Config) JetStream() eventbus.JetStreamConfig {
	bus := eventbus.DefaultJetStreamConfig()
	if c.EventBus.URL != "" {
		bus.URL = c.EventBus.URL
	} else {
		bus.URL = nats.DefaultURL
	}
	if c.EventBus.StreamName != "" {
		bus.StreamName = c.EventBus.StreamName
	}
	if c.EventBus.SubjectPrefix != "" {
		bus.SubjectPrefix = c.EventBus.SubjectPrefix
	}
	return bus
}

// DefaultYAML renders the default configuration as YAML.
func DefaultYAML() ([]byte, error) {
	return yaml.Marshal(Default())
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
