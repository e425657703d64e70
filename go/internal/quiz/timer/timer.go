// Package timer delivers single-shot, cancelable round expiry notifications.
package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// RoundTimer arms one-shot timers bound to a round number. It makes no state
// decisions; the receiver of the callback decides whether the round is still live.
type RoundTimer struct {
	clock clockwork.Clock
}

// Handle identifies one armed timer.
type Handle struct {
	Round    int
	Deadline time.Time

	timer clockwork.Timer
	done  chan struct{}
	once  sync.Once
}

// New creates a RoundTimer. In production use clockwork.NewRealClock(), in tests a FakeClock.
func New(clock clockwork.Clock) *RoundTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoundTimer{clock: clock}
}

// Arm starts a timer that calls onExpire(round) from its own goroutine once d
// has elapsed, unless the handle is cancelled first.
func (rt *RoundTimer) Arm(round int, d time.Duration, onExpire func(round int)) *Handle {
	if d < 0 {
		d = 0
	}
	h := &Handle{
		Round:    round,
		Deadline: rt.clock.Now().Add(d),
		timer:    rt.clock.NewTimer(d),
		done:     make(chan struct{}),
	}

	go func() {
		select {
		case <-h.timer.Chan():
			log.Debug().Int("round", round).Msg("round timer fired")
			onExpire(round)
		case <-h.done:
			stopAndDrainTimer(h.timer)
		}
	}()

	return h
}

// Cancel stops an armed timer. It is safe on a nil handle, safe to call more
// than once, and safe to call after or while the timer fires.
func (rt *RoundTimer) Cancel(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.done)
	})
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
