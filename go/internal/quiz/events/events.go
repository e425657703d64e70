// Package events defines the messages a trivia session pushes to its players.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for everything pushed to players.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	GameID    string          `json:"game_id,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType names a session event.
type EventType string

const (
	EventTypeGameStarted        EventType = "GameStarted"
	EventTypeQuestionStarted    EventType = "QuestionStarted"
	EventTypeAnswerRecorded     EventType = "AnswerRecorded"
	EventTypeRoundSettling      EventType = "RoundSettling"
	EventTypeRoundTimedOut      EventType = "RoundTimedOut"
	EventTypeLeaderboardUpdated EventType = "LeaderboardUpdated"
	EventTypeGameEnded          EventType = "GameEnded"
	EventTypePlayerJoined       EventType = "PlayerJoined"
	EventTypePlayerLeft         EventType = "PlayerLeft"
	EventTypeError              EventType = "Error"
)

// New builds an event with a fresh id, marshalling payload into Data.
func New(sessionID, gameID string, eventType EventType, at time.Time, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		GameID:    gameID,
		Type:      eventType,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// Sink receives events produced by a session. Implementations must not block
// the caller on slow recipients.
type Sink interface {
	Broadcast(event *Event)
	SendTo(player string, event *Event)
}

// Fanout delivers every event to each of its sinks in order.
type Fanout []Sink

func (f Fanout) Broadcast(event *Event) {
	for _, s := range f {
		if s != nil {
			s.Broadcast(event)
		}
	}
}

func (f Fanout) SendTo(player string, event *Event) {
	for _, s := range f {
		if s != nil {
			s.SendTo(player, event)
		}
	}
}

// ParsePayload decodes event data into the payload struct for its type.
func ParsePayload(event *Event) (interface{}, error) {
	var target interface{}
	switch event.Type {
	case EventTypeGameStarted:
		target = &GameStartedPayload{}
	case EventTypeQuestionStarted:
		target = &QuestionStartedPayload{}
	case EventTypeAnswerRecorded:
		target = &AnswerRecordedPayload{}
	case EventTypeRoundSettling, EventTypeRoundTimedOut:
		target = &RoundClosedPayload{}
	case EventTypeLeaderboardUpdated:
		target = &LeaderboardPayload{}
	case EventTypeGameEnded:
		target = &GameEndedPayload{}
	case EventTypePlayerJoined, EventTypePlayerLeft:
		target = &PlayerPresencePayload{}
	case EventTypeError:
		target = &ErrorPayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	if err := json.Unmarshal(event.Data, target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", event.Type, err)
	}
	return target, nil
}
