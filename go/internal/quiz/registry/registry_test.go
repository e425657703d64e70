package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsDuplicatesCaseSensitively(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("alice"))
	require.ErrorIs(t, r.Register("alice"), ErrDuplicatePlayer)
	require.NoError(t, r.Register("Alice"))
	require.ErrorIs(t, r.Register("  "), ErrInvalidName)
	assert.Equal(t, 2, r.ConnectedCount())
}

func TestUnregister(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("alice"))
	assert.True(t, r.Unregister("alice"))
	assert.False(t, r.Unregister("alice"))
	assert.Equal(t, 0, r.ConnectedCount())

	// the name is free again
	require.NoError(t, r.Register("alice"))
}

func TestRecordAnswerIsIdempotent(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("alice"))
	require.NoError(t, r.Register("bob"))

	first, err := r.RecordAnswer("alice", 1)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := r.RecordAnswer("alice", 1)
	require.NoError(t, err)
	assert.False(t, again)

	assert.True(t, r.HasAnswered("alice", 1))
	assert.False(t, r.HasAnswered("bob", 1))
	assert.Equal(t, 1, r.AnsweredCount(1))
	assert.False(t, r.AllAnswered(1))

	_, err = r.RecordAnswer("carol", 1)
	require.ErrorIs(t, err, ErrUnknownPlayer)

	_, err = r.RecordAnswer("bob", 1)
	require.NoError(t, err)
	assert.True(t, r.AllAnswered(1))

	// a new round starts with nobody answered
	assert.Equal(t, 0, r.AnsweredCount(2))
	assert.False(t, r.AllAnswered(2))
}

func TestAllAnsweredIgnoresDisconnected(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("alice"))
	require.NoError(t, r.Register("bob"))
	_, err := r.RecordAnswer("alice", 3)
	require.NoError(t, err)

	r.Unregister("bob")
	assert.True(t, r.AllAnswered(3))

	r.Unregister("alice")
	assert.False(t, r.AllAnswered(3), "an empty registry never counts as all answered")
}

func TestApplyScoreAndResetAll(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("alice"))
	require.NoError(t, r.ApplyScore("alice", 14, 1))
	require.NoError(t, r.ApplyScore("alice", 12, 2))
	require.ErrorIs(t, r.ApplyScore("bob", 1, 1), ErrUnknownPlayer)
	_, err := r.RecordAnswer("alice", 2)
	require.NoError(t, err)

	p, ok := r.Get("alice")
	require.True(t, ok)
	assert.Equal(t, 26, p.Score)
	assert.Equal(t, 2, p.Streak)
	assert.Equal(t, 2, p.LastAnsweredRound)

	r.ResetAll()
	p, _ = r.Get("alice")
	assert.Zero(t, p.Score)
	assert.Zero(t, p.Streak)
	assert.Zero(t, p.LastAnsweredRound)
}

func TestSnapshotKeepsJoinOrder(t *testing.T) {
	r := New(nil)
	for _, name := range []string{"zed", "amy", "kim", "bo"} {
		require.NoError(t, r.Register(name))
	}
	r.Unregister("amy")
	require.NoError(t, r.Register("amy"))

	assert.Equal(t, []string{"zed", "kim", "bo", "amy"}, r.Names())
}

func TestConcurrentRegisterAndAnswer(t *testing.T) {
	r := New(nil)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("p%d", i)
			if err := r.Register(name); err != nil {
				t.Errorf("register %s: %v", name, err)
				return
			}
			if _, err := r.RecordAnswer(name, 1); err != nil {
				t.Errorf("record %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, r.ConnectedCount())
	assert.True(t, r.AllAnswered(1))
}

func TestRegisterStampsJoinTimeFromClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	r := New(clock)
	require.NoError(t, r.Register("alice"))
	clock.Advance(90 * time.Second)
	require.NoError(t, r.Register("bob"))

	alice, ok := r.Get("alice")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), alice.JoinedAt)
	bob, _ := r.Get("bob")
	assert.Equal(t, alice.JoinedAt.Add(90*time.Second), bob.JoinedAt)
}
