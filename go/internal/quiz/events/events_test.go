package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	broadcast []*Event
	direct    map[string][]*Event
}

func (r *recordingSink) Broadcast(e *Event) { r.broadcast = append(r.broadcast, e) }

func (r *recordingSink) SendTo(player string, e *Event) {
	if r.direct == nil {
		r.direct = make(map[string][]*Event)
	}
	r.direct[player] = append(r.direct[player], e)
}

func TestNewAndParsePayload(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	evt, err := New("lobby", "g1", EventTypeQuestionStarted, at, QuestionStartedPayload{
		Round:   2,
		Text:    "Capital of France?",
		Options: []string{"Paris", "Rome"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, time.UTC, evt.Timestamp.Location())
	assert.NotContains(t, string(evt.Data), "correct")

	parsed, err := ParsePayload(evt)
	require.NoError(t, err)
	q, ok := parsed.(*QuestionStartedPayload)
	require.True(t, ok)
	assert.Equal(t, 2, q.Round)
	assert.Equal(t, []string{"Paris", "Rome"}, q.Options)
}

func TestParsePayloadUnknownType(t *testing.T) {
	_, err := ParsePayload(&Event{Type: "Nope", Data: []byte(`{}`)})
	require.Error(t, err)
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := Fanout{a, nil, b}

	evt := &Event{ID: "1"}
	f.Broadcast(evt)
	f.SendTo("alice", evt)

	assert.Len(t, a.broadcast, 1)
	assert.Len(t, b.broadcast, 1)
	assert.Len(t, a.direct["alice"], 1)
	assert.Len(t, b.direct["alice"], 1)
}
