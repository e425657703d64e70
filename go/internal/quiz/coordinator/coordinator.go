// Package coordinator runs the round state machine of a trivia session.
//
// A Coordinator owns one game session: the lifecycle state, the current round,
// and the registry of connected players. Every decision that moves the session
// from one round to the next is taken under a single mutex, so that the round
// timer and the answer that completes a round cannot both advance it. Events
// are collected while the mutex is held and delivered after it is released,
// in the order the transitions took the mutex.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/mcdev12/trivia/go/internal/quiz/events"
	"github.com/mcdev12/trivia/go/internal/quiz/registry"
	"github.com/mcdev12/trivia/go/internal/quiz/scoring"
	"github.com/mcdev12/trivia/go/internal/quiz/timer"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// Coordinator is the state machine for one game session.
type Coordinator struct {
	sessionID string
	cfg       Config
	source    QuestionSource
	store     HistoryStore
	sink      events.Sink
	clock     clockwork.Clock
	timers    *timer.RoundTimer
	registry  *registry.Registry

	mu            deadlock.Mutex
	deliverMu     deadlock.Mutex
	state         State
	generation    uint64
	starting      bool
	gameID        string
	gameStartedAt time.Time
	questions     []models.Question
	total         int
	round         Round
	roundsPlayed  int
	aborted       bool
	abortReason   string
	roundTimer    *timer.Handle
	settleTimer   *timer.Handle
}

// New creates an idle coordinator. store may be nil to skip persistence.
func New(sessionID string, cfg Config, source QuestionSource, store HistoryStore, sink events.Sink, clock clockwork.Clock) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sink == nil {
		sink = events.Fanout{}
	}
	if cfg.MinPlayers < MinPlayersFloor {
		cfg.MinPlayers = MinPlayersFloor
	}
	if cfg.BasePoints <= 0 {
		cfg.BasePoints = scoring.DefaultBasePoints
	}
	return &Coordinator{
		sessionID: sessionID,
		cfg:       cfg,
		source:    source,
		store:     store,
		sink:      sink,
		clock:     clock,
		timers:    timer.New(clock),
		registry:  registry.New(clock),
		state:     StateIdle,
	}
}

// SessionID returns the id of the session this coordinator owns.
func (c *Coordinator) SessionID() string {
	return c.sessionID
}

// Join registers a newly connected player.
func (c *Coordinator) Join(name string) error {
	c.mu.Lock()
	if err := c.registry.Register(name); err != nil {
		c.mu.Unlock()
		return err
	}
	fx := &effects{}
	fx.broadcast(c.newEvent(events.EventTypePlayerJoined, events.PlayerPresencePayload{
		Player:    name,
		Connected: c.registry.ConnectedCount(),
	}))
	c.unlockAndApply(fx)

	log.Info().
		Str("session_id", c.sessionID).
		Str("player", name).
		Msg("player joined")
	return nil
}

// Leave unregisters a disconnected player. If a round is live and every
// remaining player has already answered, the round settles as if the last
// answer had just arrived. A game nobody is left to play is aborted.
func (c *Coordinator) Leave(name string) bool {
	c.mu.Lock()
	if !c.registry.Unregister(name) {
		c.mu.Unlock()
		return false
	}
	fx := &effects{}
	fx.broadcast(c.newEvent(events.EventTypePlayerLeft, events.PlayerPresencePayload{
		Player:    name,
		Connected: c.registry.ConnectedCount(),
	}))
	switch {
	case c.live() && c.registry.ConnectedCount() == 0:
		c.endLocked(fx, true, "all players left")
	case c.state == StateRoundActive && c.registry.AllAnswered(c.round.Number):
		c.settleLocked(fx)
	}
	c.unlockAndApply(fx)

	log.Info().
		Str("session_id", c.sessionID).
		Str("player", name).
		Msg("player left")
	return true
}

// StartGame starts a new game with the currently connected players. Questions
// are loaded once, outside the session lock.
func (c *Coordinator) StartGame(ctx context.Context) error {
	c.mu.Lock()
	if c.starting || (c.state != StateIdle && c.state != StateEnded) {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	if n := c.registry.ConnectedCount(); n < c.cfg.MinPlayers {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d connected, need %d", ErrInsufficientPlayers, n, c.cfg.MinPlayers)
	}
	c.starting = true
	c.mu.Unlock()

	loadCtx := ctx
	if c.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, c.cfg.LoadTimeout)
		defer cancel()
	}
	questions, loadErr := c.source.Load(loadCtx)
	if loadErr == nil && len(questions) == 0 {
		loadErr = fmt.Errorf("no questions available")
	}

	c.mu.Lock()
	c.starting = false
	if n := c.registry.ConnectedCount(); loadErr == nil && n < c.cfg.MinPlayers {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d connected, need %d", ErrInsufficientPlayers, n, c.cfg.MinPlayers)
	}

	c.generation++
	c.gameID = uuid.New().String()
	c.gameStartedAt = c.clock.Now()
	c.questions = nil
	c.total = 0
	c.round = Round{}
	c.roundsPlayed = 0
	c.aborted = false
	c.abortReason = ""
	c.registry.ResetAll()

	fx := &effects{}
	if loadErr != nil {
		log.Error().
			Err(loadErr).
			Str("session_id", c.sessionID).
			Str("game_id", c.gameID).
			Msg("failed to load questions, aborting game")
		c.endLocked(fx, true, "question source unavailable")
		c.unlockAndApply(fx)
		return fmt.Errorf("%w: %v", ErrQuestionSource, loadErr)
	}

	c.questions = questions
	c.total = len(questions)
	if c.cfg.QuestionsPerGame > 0 {
		c.total = c.cfg.QuestionsPerGame
	}

	fx.broadcast(c.newEvent(events.EventTypeGameStarted, events.GameStartedPayload{
		GameID:      c.gameID,
		TotalRounds: c.total,
		Players:     c.registry.Names(),
		StartedAt:   c.gameStartedAt,
	}))

	log.Info().
		Str("session_id", c.sessionID).
		Str("game_id", c.gameID).
		Int("total_rounds", c.total).
		Int("players", c.registry.ConnectedCount()).
		Msg("game started")

	c.advanceLocked(fx)
	c.unlockAndApply(fx)
	return nil
}

// SubmitAnswer scores a player's answer for the current round. An answer that
// arrives after the time limit is accepted but scored as incorrect.
func (c *Coordinator) SubmitAnswer(name string, answer Answer, arrival time.Time) (AnswerResult, error) {
	c.mu.Lock()
	if c.state != StateRoundActive {
		c.mu.Unlock()
		return AnswerResult{}, ErrNoActiveRound
	}
	rd := c.round
	if answer.Round != 0 && answer.Round != rd.Number {
		c.mu.Unlock()
		return AnswerResult{}, fmt.Errorf("%w: answered round %d, current round is %d", ErrStaleAnswer, answer.Round, rd.Number)
	}
	if arrival.Before(rd.StartedAt) {
		c.mu.Unlock()
		return AnswerResult{}, fmt.Errorf("%w: arrived before round %d started", ErrStaleAnswer, rd.Number)
	}
	player, ok := c.registry.Get(name)
	if !ok {
		c.mu.Unlock()
		return AnswerResult{}, fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	if player.LastAnsweredRound == rd.Number {
		c.mu.Unlock()
		return AnswerResult{}, ErrDuplicateAnswer
	}

	elapsed := arrival.Sub(rd.StartedAt)
	correct := rd.Question.IsCorrect(answer.Choice)
	missed := elapsed > rd.TimeLimit
	score := scoring.Score(correct && !missed, elapsed.Milliseconds(), rd.TimeLimit.Milliseconds(), rd.BasePoints, player.Streak)

	if _, err := c.registry.RecordAnswer(name, rd.Number); err != nil {
		c.mu.Unlock()
		return AnswerResult{}, err
	}
	if err := c.registry.ApplyScore(name, score.Points, score.NewStreak); err != nil {
		c.mu.Unlock()
		return AnswerResult{}, err
	}

	result := AnswerResult{
		Round:        rd.Number,
		Choice:       answer.Choice,
		Correct:      correct,
		MissedWindow: missed,
		ElapsedMs:    elapsed.Milliseconds(),
		Points:       score.Points,
		TimeBonus:    score.TimeBonus,
		StreakBonus:  score.StreakBonus,
		Streak:       score.NewStreak,
		TotalScore:   player.Score + score.Points,
	}

	fx := &effects{}
	fx.sendTo(name, c.newEvent(events.EventTypeAnswerRecorded, events.AnswerRecordedPayload(result)))
	if c.registry.AllAnswered(rd.Number) {
		c.settleLocked(fx)
	}
	c.unlockAndApply(fx)

	log.Info().
		Str("session_id", c.sessionID).
		Str("player", name).
		Int("round", rd.Number).
		Bool("correct", correct).
		Bool("missed_window", missed).
		Int("points", score.Points).
		Int("time_bonus", score.TimeBonus).
		Int("streak_bonus", score.StreakBonus).
		Int("streak", score.NewStreak).
		Msg("answer scored")
	return result, nil
}

// EndGame stops the running game immediately.
func (c *Coordinator) EndGame() error {
	c.mu.Lock()
	if !c.live() {
		c.mu.Unlock()
		return ErrNoActiveRound
	}
	fx := &effects{}
	c.endLocked(fx, false, "ended by host")
	c.unlockAndApply(fx)
	return nil
}

// Shutdown cancels any pending timers. The session is left as it is.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimersLocked()
}

// Snapshot returns the current session state.
func (c *Coordinator) Snapshot() SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	players := c.registry.Snapshot()
	snap := SessionSnapshot{
		SessionID:   c.sessionID,
		GameID:      c.gameID,
		State:       c.state,
		Round:       c.round.Number,
		TotalRounds: c.total,
		Aborted:     c.aborted,
		AbortReason: c.abortReason,
		Players:     players,
		Leaderboard: scoring.Leaderboard(players),
	}
	if c.live() {
		started := c.round.StartedAt
		deadline := c.round.Deadline()
		snap.RoundStartedAt = &started
		snap.Deadline = &deadline
	}
	return snap
}

// onRoundExpired is the round timer callback. It only acts if the game and
// round it was armed for are still accepting answers.
func (c *Coordinator) onRoundExpired(generation uint64, round int) {
	c.mu.Lock()
	if c.generation != generation || c.state != StateRoundActive || c.round.Number != round {
		state := c.state
		current := c.round.Number
		c.mu.Unlock()
		log.Debug().
			Str("session_id", c.sessionID).
			Int("timer_round", round).
			Int("current_round", current).
			Str("state", string(state)).
			Msg("stale round timer ignored")
		return
	}
	c.roundTimer = nil

	fx := &effects{}
	c.closeRoundLocked(fx, events.EventTypeRoundTimedOut, c.clock.Now())
	c.advanceLocked(fx)
	c.unlockAndApply(fx)

	log.Info().
		Str("session_id", c.sessionID).
		Int("round", round).
		Msg("round timed out")
}

// onSettled is the settle delay callback.
func (c *Coordinator) onSettled(generation uint64, round int) {
	c.mu.Lock()
	if c.generation != generation || c.state != StateRoundSettling || c.round.Number != round {
		c.mu.Unlock()
		return
	}
	c.settleTimer = nil

	fx := &effects{}
	c.advanceLocked(fx)
	c.unlockAndApply(fx)
}

// settleLocked closes the current round early because everyone answered and
// schedules the advance after the settle delay.
func (c *Coordinator) settleLocked(fx *effects) {
	c.timers.Cancel(c.roundTimer)
	c.roundTimer = nil
	c.state = StateRoundSettling

	nextAt := c.clock.Now().Add(c.cfg.SettleDelay)
	c.closeRoundLocked(fx, events.EventTypeRoundSettling, nextAt)
	gen := c.generation
	c.settleTimer = c.timers.Arm(c.round.Number, c.cfg.SettleDelay, func(round int) {
		c.onSettled(gen, round)
	})

	log.Info().
		Str("session_id", c.sessionID).
		Int("round", c.round.Number).
		Dur("settle_delay", c.cfg.SettleDelay).
		Msg("all players answered, round settling")
}

func (c *Coordinator) closeRoundLocked(fx *effects, eventType events.EventType, nextAt time.Time) {
	fx.broadcast(c.newEvent(eventType, events.RoundClosedPayload{
		Round:         c.round.Number,
		CorrectAnswer: c.round.Question.CorrectAnswer,
		Answered:      c.registry.AnsweredCount(c.round.Number),
		Connected:     c.registry.ConnectedCount(),
		NextRoundAt:   nextAt,
	}))
	fx.broadcast(c.newEvent(events.EventTypeLeaderboardUpdated, events.LeaderboardPayload{
		Round:   c.round.Number,
		Entries: scoring.Leaderboard(c.registry.Snapshot()),
	}))
}

// advanceLocked is the only place a round transition happens.
func (c *Coordinator) advanceLocked(fx *effects) {
	c.cancelTimersLocked()

	next := c.round.Number + 1
	if next > c.total {
		c.endLocked(fx, false, "")
		return
	}
	if next > len(c.questions) {
		c.endLocked(fx, true, fmt.Sprintf("question for round %d is missing", next))
		return
	}
	q := c.questions[next-1]
	if err := q.Validate(); err != nil {
		c.endLocked(fx, true, fmt.Sprintf("question for round %d is invalid: %v", next, err))
		return
	}

	limit := time.Duration(q.TimeLimitMs) * time.Millisecond
	if limit == 0 {
		limit = c.cfg.DefaultTimeLimit
	}
	base := q.BasePoints
	if base == 0 {
		base = c.cfg.BasePoints
	}

	c.round = Round{
		Number:     next,
		Question:   q,
		TimeLimit:  limit,
		BasePoints: base,
		StartedAt:  c.clock.Now(),
	}
	c.roundsPlayed = next
	c.state = StateRoundActive
	gen := c.generation
	c.roundTimer = c.timers.Arm(next, limit, func(round int) {
		c.onRoundExpired(gen, round)
	})

	fx.broadcast(c.newEvent(events.EventTypeQuestionStarted, events.QuestionStartedPayload{
		Round:       next,
		TotalRounds: c.total,
		QuestionID:  q.ID,
		Text:        q.Text,
		Options:     q.Options,
		TimeLimitMs: limit.Milliseconds(),
		StartedAt:   c.round.StartedAt,
		Deadline:    c.round.Deadline(),
	}))

	log.Info().
		Str("session_id", c.sessionID).
		Str("game_id", c.gameID).
		Int("round", next).
		Int("total_rounds", c.total).
		Dur("time_limit", limit).
		Msg("round started")
}

// endLocked moves the session to ENDED and queues the final leaderboard,
// the game summary and, if any round was served, persistence.
func (c *Coordinator) endLocked(fx *effects, aborted bool, reason string) {
	c.cancelTimersLocked()
	c.state = StateEnded
	c.aborted = aborted
	if aborted {
		c.abortReason = reason
	}

	now := c.clock.Now()
	board := scoring.Leaderboard(c.registry.Snapshot())
	result := models.GameResult{
		GameID:       c.gameID,
		SessionID:    c.sessionID,
		StartedAt:    c.gameStartedAt,
		EndedAt:      now,
		RoundsPlayed: c.roundsPlayed,
		TotalRounds:  c.total,
		Aborted:      aborted,
		AbortReason:  c.abortReason,
		Leaderboard:  board,
	}

	summary := events.GameEndedPayload{
		GameID:       c.gameID,
		RoundsPlayed: c.roundsPlayed,
		TotalRounds:  c.total,
		Aborted:      aborted,
		Reason:       reason,
		Leaderboard:  board,
		EndedAt:      now,
	}
	if winner, ok := result.Winner(); ok && c.roundsPlayed > 0 {
		summary.Winner = winner.Name
	}

	fx.broadcast(c.newEvent(events.EventTypeLeaderboardUpdated, events.LeaderboardPayload{
		Round:   c.roundsPlayed,
		Final:   true,
		Entries: board,
	}))
	fx.broadcast(c.newEvent(events.EventTypeGameEnded, summary))
	if c.roundsPlayed > 0 && len(board) > 0 {
		fx.result = &result
	}

	evt := log.Info()
	if aborted {
		evt = log.Warn()
	}
	evt.
		Str("session_id", c.sessionID).
		Str("game_id", c.gameID).
		Int("rounds_played", c.roundsPlayed).
		Bool("aborted", aborted).
		Str("reason", reason).
		Msg("game ended")
}

func (c *Coordinator) cancelTimersLocked() {
	c.timers.Cancel(c.roundTimer)
	c.timers.Cancel(c.settleTimer)
	c.roundTimer = nil
	c.settleTimer = nil
}

func (c *Coordinator) newEvent(eventType events.EventType, payload interface{}) *events.Event {
	evt, err := events.New(c.sessionID, c.gameID, eventType, c.clock.Now(), payload)
	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", c.sessionID).
			Str("event_type", string(eventType)).
			Msg("failed to build event")
		return nil
	}
	return evt
}

// Vacant reports whether the session has no players and no game in progress.
func (c *Coordinator) Vacant() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.live() && c.registry.ConnectedCount() == 0
}

func (c *Coordinator) live() bool {
	return c.state == StateRoundActive || c.state == StateRoundSettling
}

// unlockAndApply releases c.mu and delivers fx. deliverMu is taken before c.mu
// is released so deliveries never overtake each other.
func (c *Coordinator) unlockAndApply(fx *effects) {
	c.deliverMu.Lock()
	c.mu.Unlock()
	defer c.deliverMu.Unlock()
	c.apply(fx)
}

// apply delivers queued events in order, then hands off persistence. Callers
// hold deliverMu, not c.mu.
func (c *Coordinator) apply(fx *effects) {
	for _, p := range fx.pending {
		if p.player == "" {
			c.sink.Broadcast(p.event)
		} else {
			c.sink.SendTo(p.player, p.event)
		}
	}
	if fx.result != nil && c.store != nil {
		go c.persist(*fx.result)
	}
}

func (c *Coordinator) persist(result models.GameResult) {
	ctx := context.Background()
	if c.cfg.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PersistTimeout)
		defer cancel()
	}
	if err := c.store.SaveGame(ctx, result); err != nil {
		log.Error().
			Err(err).
			Str("session_id", c.sessionID).
			Str("game_id", result.GameID).
			Msg("failed to persist game result")
		return
	}
	log.Info().
		Str("session_id", c.sessionID).
		Str("game_id", result.GameID).
		Int("players", len(result.Leaderboard)).
		Msg("game result persisted")
}

type pending struct {
	player string // empty for broadcast
	event  *events.Event
}

// effects collects everything a locked transition wants to do once the lock is released.
type effects struct {
	pending []pending
	result  *models.GameResult
}

func (fx *effects) broadcast(evt *events.Event) {
	if evt != nil {
		fx.pending = append(fx.pending, pending{event: evt})
	}
}

func (fx *effects) sendTo(player string, evt *events.Event) {
	if evt != nil {
		fx.pending = append(fx.pending, pending{player: player, event: evt})
	}
}
