// Package registry tracks the players connected to one trivia session.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/sasha-s/go-deadlock"
)

var (
	ErrDuplicatePlayer = errors.New("player name already connected")
	ErrUnknownPlayer   = errors.New("player is not connected")
	ErrInvalidName     = errors.New("player name must not be empty")
)

// Registry is a thread-safe map from player name to player record.
// Names are case-sensitive.
type Registry struct {
	mu      deadlock.RWMutex
	players map[string]*models.Player
	seq     uint64
	clock   clockwork.Clock
}

// New creates an empty registry. Join times are read from clock.
func New(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		players: make(map[string]*models.Player),
		clock:   clock,
	}
}

// Register adds a player with zeroed score and streak.
func (r *Registry) Register(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePlayer, name)
	}
	r.seq++
	r.players[name] = &models.Player{
		Name:     name,
		JoinSeq:  r.seq,
		JoinedAt: r.clock.Now(),
	}
	return nil
}

// Unregister removes a player. It reports whether the player was connected.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[name]; !exists {
		return false
	}
	delete(r.players, name)
	return true
}

// RecordAnswer marks the player as having answered the given round. Marking the
// same round again is a no-op and returns false.
func (r *Registry) RecordAnswer(name string, round int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	if p.LastAnsweredRound == round {
		return false, nil
	}
	p.LastAnsweredRound = round
	return true, nil
}

// ApplyScore adds points to a player's total and replaces their streak.
func (r *Registry) ApplyScore(name string, points, streak int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	p.Score += points
	p.Streak = streak
	return nil
}

// HasAnswered reports whether the player has already answered the round.
func (r *Registry) HasAnswered(name string, round int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[name]
	return ok && p.LastAnsweredRound == round
}

// AnsweredCount returns how many connected players answered the round.
func (r *Registry) AnsweredCount(round int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.answeredLocked(round)
}

// ConnectedCount returns the number of connected players.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.players)
}

// AllAnswered reports whether at least one player is connected and every
// connected player has answered the round.
func (r *Registry) AllAnswered(round int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.players) > 0 && r.answeredLocked(round) == len(r.players)
}

func (r *Registry) answeredLocked(round int) int {
	n := 0
	for _, p := range r.players {
		if p.LastAnsweredRound == round {
			n++
		}
	}
	return n
}

// ResetAll zeroes every player's score, streak and answer marker.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		p.Score = 0
		p.Streak = 0
		p.LastAnsweredRound = 0
	}
}

// Get returns a copy of the player record.
func (r *Registry) Get(name string) (models.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[name]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}

// Snapshot returns copies of all connected players in join order.
func (r *Registry) Snapshot() []models.Player {
	r.mu.RLock()
	out := make([]models.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].JoinSeq < out[j].JoinSeq })
	return out
}

// Names returns connected player names in join order.
func (r *Registry) Names() []string {
	players := r.Snapshot()
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return names
}
