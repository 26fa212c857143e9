// Package ring provides the countdown that bounds how long an incoming call
// notification rings before it is treated as unanswered.
package ring

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultDuration is how long a notification rings when not configured.
const DefaultDuration = 30 * time.Second

// Timer is a single-shot countdown. Each Start arms a new generation; a fire
// from an older generation is discarded, so a callback that races Stop or a
// restart never runs.
type Timer struct {
	clock    clock.Clock
	duration time.Duration

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64
}

// New creates a stopped Timer. A non-positive duration uses DefaultDuration.
func New(clk clock.Clock, d time.Duration) *Timer {
	if d <= 0 {
		d = DefaultDuration
	}
	return &Timer{
		clock:    clk,
		duration: d,
	}
}

// Duration returns the countdown length.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Start arms the countdown, replacing one that is already running. fire runs
// on its own goroutine once the duration elapses.
func (t *Timer) Start(fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.duration, func() {
		t.mu.Lock()
		if gen != t.gen || t.timer == nil {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.mu.Unlock()
		fire()
	})
}

// Stop cancels the countdown. It reports whether a countdown was running.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	t.gen++
	return true
}

// Active reports whether a countdown is running.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
