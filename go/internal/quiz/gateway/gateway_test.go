package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/quiz/coordinator"
	"github.com/mcdev12/trivia/go/internal/quiz/events"
	"github.com/mcdev12/trivia/go/internal/quiz/lobby"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource []models.Question

func (s staticSource) Load(context.Context) ([]models.Question, error) {
	return s, nil
}

type fakeStats struct {
	limit atomic.Int64
}

func (f *fakeStats) TopPlayers(_ context.Context, limit int) ([]models.PlayerStats, error) {
	f.limit.Store(int64(limit))
	return []models.PlayerStats{{Name: "alice", TotalScore: 42, GamesPlayed: 3, Wins: 2}}, nil
}

type testServer struct {
	server *httptest.Server
	lobby  *lobby.Lobby
	stats  *fakeStats
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := clockwork.NewFakeClock()
	cm := NewConnectionManager(DefaultConnectionConfig())
	source := staticSource{{
		ID:            "q1",
		Text:          "Capital of France?",
		Options:       []string{"Paris", "Rome"},
		CorrectAnswer: "Paris",
		TimeLimitMs:   10000,
		BasePoints:    10,
	}}
	l := lobby.New(func(id string) *coordinator.Coordinator {
		return coordinator.New(id, coordinator.DefaultConfig(), source, nil, NewSessionBroadcaster(id, cm), clock)
	})
	stats := &fakeStats{}
	svc := NewService(cm, l, stats, clock)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		l.Shutdown()
		cancel()
	})
	return &testServer{server: server, lobby: l, stats: stats}
}

func (s *testServer) dial(t *testing.T, session, player string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/quiz?session=" + session + "&player=" + player
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readUntil(t *testing.T, conn *websocket.Conn, eventType events.EventType) *events.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var evt events.Event
		require.NoError(t, conn.ReadJSON(&evt))
		if evt.Type == eventType {
			return &evt
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": msgType}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func TestQuizOverWebSocket(t *testing.T) {
	s := newTestServer(t)

	alice, _, err := s.dial(t, "room", "alice")
	require.NoError(t, err)
	_, _, err = s.dial(t, "room", "bob")
	require.NoError(t, err)

	send(t, alice, MessageTypeStart, nil)
	started := readUntil(t, alice, events.EventTypeQuestionStarted)
	payload, err := events.ParsePayload(started)
	require.NoError(t, err)
	assert.Equal(t, 1, payload.(*events.QuestionStartedPayload).Round)
	assert.Equal(t, []string{"Paris", "Rome"}, payload.(*events.QuestionStartedPayload).Options)

	send(t, alice, MessageTypeAnswer, coordinator.Answer{Round: 1, Choice: "paris"})
	recorded := readUntil(t, alice, events.EventTypeAnswerRecorded)
	payload, err = events.ParsePayload(recorded)
	require.NoError(t, err)
	assert.True(t, payload.(*events.AnswerRecordedPayload).Correct)
	assert.Equal(t, 15, payload.(*events.AnswerRecordedPayload).Points)

	send(t, alice, MessageTypeAnswer, coordinator.Answer{Round: 1, Choice: "Paris"})
	rejected := readUntil(t, alice, events.EventTypeError)
	payload, err = events.ParsePayload(rejected)
	require.NoError(t, err)
	assert.Equal(t, "DuplicateAnswer", payload.(*events.ErrorPayload).Kind)

	send(t, alice, "dance", nil)
	rejected = readUntil(t, alice, events.EventTypeError)
	payload, err = events.ParsePayload(rejected)
	require.NoError(t, err)
	assert.Equal(t, "InvalidMessage", payload.(*events.ErrorPayload).Kind)
}

func TestDuplicatePlayerRejected(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.dial(t, "room", "alice")
	require.NoError(t, err)

	_, resp, err := s.dial(t, "room", "alice")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, resp, err = s.dial(t, "room", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDisconnectLeavesSession(t *testing.T) {
	s := newTestServer(t)

	alice, _, err := s.dial(t, "room", "alice")
	require.NoError(t, err)
	session, ok := s.lobby.Get("room")
	require.True(t, ok)
	require.Len(t, session.Snapshot().Players, 1)

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool {
		return len(session.Snapshot().Players) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// The vacant session is dropped from the lobby
	require.Eventually(t, func() bool {
		_, ok := s.lobby.Get("room")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	// The name is free again, in a fresh session
	_, _, err = s.dial(t, "room", "alice")
	require.NoError(t, err)
	fresh, ok := s.lobby.Get("room")
	require.True(t, ok)
	assert.NotSame(t, session, fresh)
	assert.Equal(t, []string{"room"}, s.lobby.Sessions())
}

func TestStateAPI(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Post(s.server.URL+"/api/sessions/nope/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, _, err = s.dial(t, "room", "alice")
	require.NoError(t, err)

	resp, err = http.Post(s.server.URL+"/api/sessions/room/start", "application/json", nil)
	require.NoError(t, err)
	var failure errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&failure))
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "InsufficientPlayers", failure.Kind)

	_, _, err = s.dial(t, "room", "bob")
	require.NoError(t, err)

	resp, err = http.Post(s.server.URL+"/api/sessions/room/start", "application/json", nil)
	require.NoError(t, err)
	var snap coordinator.SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, coordinator.StateRoundActive, snap.State)
	assert.Equal(t, 1, snap.Round)

	resp, err = http.Get(s.server.URL + "/api/sessions")
	require.NoError(t, err)
	var summaries []SessionSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	resp.Body.Close()
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].Players)

	resp, err = http.Post(s.server.URL+"/api/sessions/room/end", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, coordinator.StateEnded, snap.State)

	resp, err = http.Get(s.server.URL + "/api/leaderboard?limit=500")
	require.NoError(t, err)
	var players []models.PlayerStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&players))
	resp.Body.Close()
	require.Len(t, players, 1)
	assert.Equal(t, int64(maxLeaderboardLimit), s.stats.limit.Load())

	resp, err = http.Get(s.server.URL + "/api/leaderboard?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(s.server.URL + "/ws/stats")
	require.NoError(t, err)
	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, 2, stats.TotalConnections)
}
