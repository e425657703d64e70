package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/quiz/coordinator"
	"github.com/mcdev12/trivia/go/internal/quiz/lobby"
	"github.com/rs/zerolog/log"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// StatsProvider serves all-time player statistics
type StatsProvider interface {
	TopPlayers(ctx context.Context, limit int) ([]models.PlayerStats, error)
}

// SessionSummary is one row of GET /api/sessions
type SessionSummary struct {
	SessionID   string            `json:"session_id"`
	State       coordinator.State `json:"state"`
	Round       int               `json:"round"`
	TotalRounds int               `json:"total_rounds"`
	Players     int               `json:"players"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StateHandler serves the admin and state HTTP API
type StateHandler struct {
	lobby *lobby.Lobby
	stats StatsProvider
}

// NewStateHandler creates a new state handler. stats may be nil.
func NewStateHandler(l *lobby.Lobby, stats StatsProvider) *StateHandler {
	return &StateHandler{
		lobby: l,
		stats: stats,
	}
}

// HandleStartGame handles POST /api/sessions/{id}/start
func (h *StateHandler) HandleStartGame(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.StartGame(r.Context()); err != nil {
		h.writeCoordinatorError(w, session.SessionID(), err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// HandleEndGame handles POST /api/sessions/{id}/end
func (h *StateHandler) HandleEndGame(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.EndGame(); err != nil {
		h.writeCoordinatorError(w, session.SessionID(), err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// HandleGetSession handles GET /api/sessions/{id}
func (h *StateHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// HandleListSessions handles GET /api/sessions
func (h *StateHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries := make([]SessionSummary, 0)
	for _, id := range h.lobby.Sessions() {
		session, ok := h.lobby.Get(id)
		if !ok {
			continue
		}
		snap := session.Snapshot()
		summaries = append(summaries, SessionSummary{
			SessionID:   snap.SessionID,
			State:       snap.State,
			Round:       snap.Round,
			TotalRounds: snap.TotalRounds,
			Players:     len(snap.Players),
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// HandleLeaderboard handles GET /api/leaderboard?limit=n
func (h *StateHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "NotFound", "history store is not configured")
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be a positive integer")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	players, err := h.stats.TopPlayers(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to load all-time leaderboard")
		writeError(w, http.StatusInternalServerError, "Internal", "failed to load leaderboard")
		return
	}
	if players == nil {
		players = []models.PlayerStats{}
	}
	writeJSON(w, http.StatusOK, players)
}

// HandleHealth handles GET /health
func (h *StateHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions/{id}/start", h.HandleStartGame)
	mux.HandleFunc("POST /api/sessions/{id}/end", h.HandleEndGame)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/leaderboard", h.HandleLeaderboard)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

func (h *StateHandler) session(w http.ResponseWriter, r *http.Request) (*coordinator.Coordinator, bool) {
	id := r.PathValue("id")
	session, ok := h.lobby.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "unknown session "+strconv.Quote(id))
		return nil, false
	}
	return session, true
}

func (h *StateHandler) writeCoordinatorError(w http.ResponseWriter, sessionID string, err error) {
	status := http.StatusConflict
	switch {
	case errors.Is(err, coordinator.ErrQuestionSource):
		status = http.StatusServiceUnavailable
	case !coordinator.IsCallerError(err):
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("session_id", sessionID).Msg("session command failed")
	}
	writeError(w, status, coordinator.Kind(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}
