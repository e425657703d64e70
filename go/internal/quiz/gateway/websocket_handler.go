package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/quiz/coordinator"
	"github.com/mcdev12/trivia/go/internal/quiz/events"
	"github.com/mcdev12/trivia/go/internal/quiz/lobby"
	"github.com/rs/zerolog/log"
)

// Client message types
const (
	MessageTypeAnswer = "answer"
	MessageTypeStart  = "start"
	MessageTypeEnd    = "end"
	MessageTypePing   = "ping"
)

// ClientMessage is what players send over the socket
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketHandler handles WebSocket upgrade requests for quiz sessions
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	lobby             *lobby.Lobby
	clock             clockwork.Clock
}

// NewWebSocketHandler creates a new WebSocket handler. Answer arrival times are read from clock.
func NewWebSocketHandler(cm *ConnectionManager, l *lobby.Lobby, clock clockwork.Clock) *WebSocketHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WebSocketHandler{
		connectionManager: cm,
		lobby:             l,
		clock:             clock,
	}
}

// HandleQuizConnection joins the player to the session, then upgrades to a WebSocket
func (h *WebSocketHandler) HandleQuizConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	player := strings.TrimSpace(r.URL.Query().Get("player"))
	if sessionID == "" || player == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "session and player are required")
		return
	}

	session, err := h.lobby.Join(sessionID, player)
	if errors.Is(err, lobby.ErrInvalidSessionID) {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, coordinator.ErrDuplicatePlayer) {
			status = http.StatusConflict
		}
		writeError(w, status, coordinator.Kind(err), err.Error())
		return
	}

	_, err = h.connectionManager.UpgradeConnection(w, r, sessionID, player,
		func(c *Connection, message []byte) {
			h.handleClientMessage(session, c, message)
		},
		func(c *Connection) {
			h.lobby.Leave(session, c.Player)
		},
	)
	if err != nil {
		// The upgrader has already replied to the client
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("player", player).
			Msg("failed to upgrade WebSocket connection")
		h.lobby.Leave(session, player)
	}
}

func (h *WebSocketHandler) handleClientMessage(session *coordinator.Coordinator, c *Connection, raw []byte) {
	arrival := h.clock.Now()

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, "InvalidMessage", "message must be a JSON object with a type")
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("player", c.Player).
		Str("type", msg.Type).
		Msg("received client message")

	var err error
	switch msg.Type {
	case MessageTypeAnswer:
		var answer coordinator.Answer
		if len(msg.Data) == 0 {
			h.sendError(c, "InvalidMessage", "answer requires data")
			return
		}
		if err := json.Unmarshal(msg.Data, &answer); err != nil {
			h.sendError(c, "InvalidMessage", "answer data is malformed")
			return
		}
		_, err = session.SubmitAnswer(c.Player, answer, arrival)
	case MessageTypeStart:
		err = session.StartGame(context.Background())
	case MessageTypeEnd:
		err = session.EndGame()
	case MessageTypePing:
		return
	default:
		h.sendError(c, "InvalidMessage", "unknown message type "+msg.Type)
		return
	}

	if err != nil {
		if !coordinator.IsCallerError(err) {
			log.Error().
				Err(err).
				Str("session_id", c.SessionID).
				Str("player", c.Player).
				Str("type", msg.Type).
				Msg("client command failed")
		}
		h.sendError(c, coordinator.Kind(err), err.Error())
	}
}

func (h *WebSocketHandler) sendError(c *Connection, kind, message string) {
	evt, err := events.New(c.SessionID, "", events.EventTypeError, h.clock.Now(), events.ErrorPayload{
		Kind:    kind,
		Message: message,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build error event")
		return
	}
	h.connectionManager.SendToPlayer(c.SessionID, c.Player, evt)
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/quiz", h.HandleQuizConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
