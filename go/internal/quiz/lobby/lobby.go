// Package lobby keeps the set of live trivia sessions in one process.
package lobby

import (
	"errors"
	"sort"
	"strings"

	"github.com/mcdev12/trivia/go/internal/quiz/coordinator"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

var ErrInvalidSessionID = errors.New("session id must not be empty")

// Factory builds the coordinator for a new session.
type Factory func(sessionID string) *coordinator.Coordinator

// Lobby maps session ids to their coordinators.
type Lobby struct {
	mu       deadlock.RWMutex
	sessions map[string]*coordinator.Coordinator
	factory  Factory
}

func New(factory Factory) *Lobby {
	return &Lobby{
		sessions: make(map[string]*coordinator.Coordinator),
		factory:  factory,
	}
}

// Get returns the coordinator for an existing session.
func (l *Lobby) Get(sessionID string) (*coordinator.Coordinator, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.sessions[sessionID]
	return c, ok
}

// Join adds player to the session, creating the session on first use. A session
// created for a join that fails is dropped again.
func (l *Lobby) Join(sessionID, player string) (*coordinator.Coordinator, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSessionID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, created := l.getOrCreateLocked(sessionID)
	if err := c.Join(player); err != nil {
		if created {
			l.removeLocked(sessionID, c)
		}
		return nil, err
	}
	return c, nil
}

// Leave removes player from the session and forgets the session once nobody
// is left and no game is running.
func (l *Lobby) Leave(c *coordinator.Coordinator, player string) bool {
	left := c.Leave(player)

	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.sessions[c.SessionID()]; ok && current == c && c.Vacant() {
		l.removeLocked(c.SessionID(), c)
	}
	return left
}

func (l *Lobby) getOrCreateLocked(sessionID string) (*coordinator.Coordinator, bool) {
	if c, ok := l.sessions[sessionID]; ok {
		return c, false
	}
	c := l.factory(sessionID)
	l.sessions[sessionID] = c

	log.Info().
		Str("session_id", sessionID).
		Int("total_sessions", len(l.sessions)).
		Msg("session created")
	return c, true
}

func (l *Lobby) removeLocked(sessionID string, c *coordinator.Coordinator) {
	delete(l.sessions, sessionID)
	c.Shutdown()

	log.Info().
		Str("session_id", sessionID).
		Int("total_sessions", len(l.sessions)).
		Msg("session removed")
}

// Sessions returns the ids of all live sessions, sorted.
func (l *Lobby) Sessions() []string {
	l.mu.RLock()
	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Remove shuts down and forgets a session.
func (l *Lobby) Remove(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.sessions[sessionID]
	if ok {
		l.removeLocked(sessionID, c)
	}
	return ok
}

// Shutdown stops the timers of every session.
func (l *Lobby) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.sessions {
		c.Shutdown()
	}
}
