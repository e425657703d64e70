package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/trivia/go/internal/quiz/events"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"
)

// ConnectionManager manages the WebSocket connections of every session
type ConnectionManager struct {
	// Connection pools organized by session ID
	sessions map[string]map[*Connection]bool
	mu       deadlock.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection is one player's WebSocket
type Connection struct {
	ID        string
	Player    string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time

	limiter   *rate.Limiter
	onMessage func(c *Connection, message []byte)
	onClose   func(c *Connection)
	done      chan struct{}
	closeOnce sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	BroadcastBuffer int
	// Inbound messages allowed per second and burst, per connection
	MessageRate  float64
	MessageBurst int
	CheckOrigin  func(r *http.Request) bool
}

// BroadcastMessage is an event queued for one session
type BroadcastMessage struct {
	SessionID string
	Event     *events.Event
	Player    string // Optional: if set, only send to this player
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		BroadcastBuffer: 1000,
		MessageRate:     5,
		MessageBurst:    10,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	if config.BroadcastBuffer <= 0 {
		config.BroadcastBuffer = 1000
	}
	return &ConnectionManager{
		sessions: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
	}
}

// Start processes queued broadcasts until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a player's WebSocket and starts its pumps.
// onMessage is called from the read pump for every accepted inbound message, and
// onClose exactly once when the connection goes away.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID, player string,
	onMessage func(c *Connection, message []byte), onClose func(c *Connection)) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Player:      player,
		SessionID:   sessionID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		onMessage:   onMessage,
		onClose:     onClose,
		done:        make(chan struct{}),
	}
	if cm.config.MessageRate > 0 {
		connection.limiter = rate.NewLimiter(rate.Limit(cm.config.MessageRate), cm.config.MessageBurst)
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player", player).
		Str("session_id", sessionID).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessions[conn.SessionID] == nil {
		cm.sessions[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessions[conn.SessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID).
		Int("total_connections", len(cm.sessions[conn.SessionID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection and reports whether it was still registered
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.sessions[conn.SessionID]
	if !exists || !connections[conn] {
		return false
	}
	delete(connections, conn)
	if len(connections) == 0 {
		delete(cm.sessions, conn.SessionID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("player", conn.Player).
		Str("session_id", conn.SessionID).
		Msg("connection unregistered")
	return true
}

// Broadcast queues an event for every connection of a session
func (cm *ConnectionManager) Broadcast(sessionID string, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Event: event}:
	default:
		log.Warn().
			Str("session_id", sessionID).
			Str("event_type", string(event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// SendToPlayer queues an event for a single player of a session
func (cm *ConnectionManager) SendToPlayer(sessionID, player string, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Event: event, Player: player}:
	default:
		log.Warn().
			Str("session_id", sessionID).
			Str("player", player).
			Str("event_type", string(event.Type)).
			Msg("broadcast channel full, dropping player message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.sessions[message.SessionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot so the lock is not held while sending
	var targets []*Connection
	for conn := range connections {
		if message.Player != "" && conn.Player != message.Player {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Str("player", conn.Player).
				Str("session_id", conn.SessionID).
				Msg("connection send buffer full, closing connection")
			conn.close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("session_id", message.SessionID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// ConnectionStats summarizes the active connections
type ConnectionStats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionConnections map[string]int `json:"session_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveSessions:     len(cm.sessions),
		SessionConnections: make(map[string]int, len(cm.sessions)),
	}
	for sessionID, connections := range cm.sessions {
		stats.TotalConnections += len(connections)
		stats.SessionConnections[sessionID] = len(connections)
	}
	return stats
}

// close unregisters the connection, stops both pumps and runs onClose. Safe to call repeatedly.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.Manager.unregisterConnection(c)
		close(c.done)
		c.Conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))

		if c.limiter != nil && !c.limiter.Allow() {
			log.Warn().
				Str("connection_id", c.ID).
				Str("player", c.Player).
				Str("session_id", c.SessionID).
				Msg("inbound rate limit exceeded, dropping message")
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c, message)
		}
	}
}

// SessionBroadcaster delivers one session's events to its connections.
type SessionBroadcaster struct {
	sessionID string
	manager   *ConnectionManager
}

var _ events.Sink = (*SessionBroadcaster)(nil)

func NewSessionBroadcaster(sessionID string, manager *ConnectionManager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionID: sessionID, manager: manager}
}

func (b *SessionBroadcaster) Broadcast(event *events.Event) {
	b.manager.Broadcast(b.sessionID, event)
}

func (b *SessionBroadcaster) SendTo(player string, event *events.Event) {
	b.manager.SendToPlayer(b.sessionID, player, event)
}
