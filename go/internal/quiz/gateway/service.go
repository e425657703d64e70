package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/quiz/lobby"
	"github.com/rs/zerolog/log"
)

// Service is the quiz gateway: WebSocket transport plus the HTTP state API
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// NewService wires a gateway around an existing connection manager. The lobby's
// coordinators are expected to broadcast through SessionBroadcasters on cm.
func NewService(cm *ConnectionManager, l *lobby.Lobby, stats StatsProvider, clock clockwork.Clock) *Service {
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, l, clock),
		stateHandler:      NewStateHandler(l, stats),
	}
}

// Start runs the broadcast loop until ctx is done
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting quiz gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("quiz gateway service stopped")
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("quiz gateway routes registered")
}
