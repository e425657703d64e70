package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quiz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 2, c.Game.MinPlayers)
	assert.Equal(t, 15*time.Second, c.Game.DefaultTimeLimit)
	assert.Equal(t, 3*time.Second, c.Coordinator().SettleDelay)
	assert.Equal(t, "QUIZ_EVENTS", c.JetStream().StreamName)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
game:
  min_players: 3
  settle_delay: 500ms
questions:
  source: postgres
history:
  backend: none
event_bus:
  enabled: true
  subject_prefix: trivia.live
gateway:
  message_rate: 2
  message_burst: 4
`)
	t.Setenv("QUIZ_TIME_LIMIT", "20s")
	t.Setenv("NATS_URL", "nats://bus:4222")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, 3, c.Coordinator().MinPlayers)
	assert.Equal(t, 500*time.Millisecond, c.Game.SettleDelay)
	assert.Equal(t, 20*time.Second, c.Game.DefaultTimeLimit)
	assert.Equal(t, SourcePostgres, c.Questions.Source)
	assert.True(t, c.EventBus.Enabled)

	bus := c.JetStream()
	assert.Equal(t, "nats://bus:4222", bus.URL)
	assert.Equal(t, "trivia.live", bus.SubjectPrefix)

	conn := c.Connection()
	assert.Equal(t, 2.0, conn.MessageRate)
	assert.Equal(t, 4, conn.MessageBurst)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "game:\n  min_players: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_players")

	_, err = Load(writeConfig(t, "game:\n  min_players: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_players must be at least 2")

	_, err = Load(writeConfig(t, "history:\n  backend: mongo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo_uri")

	t.Setenv("QUIZ_MIN_PLAYERS", "many")
	_, err = Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultYAMLRoundTrips(t *testing.T) {
	data, err := DefaultYAML()
	require.NoError(t, err)

	var c Config
	require.NoError(t, yaml.Unmarshal(data, &c))
	assert.Equal(t, Default(), c)
}
