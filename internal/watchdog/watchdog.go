// Package watchdog provides a restartable single-shot inactivity timer.
package watchdog

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultTimeout is the inactivity bound used for capture sessions.
const DefaultTimeout = 8000 * time.Millisecond

// Watchdog holds at most one pending timeout.
//
// Arm replaces any pending timeout. Every arm gets a new generation, and a
// timer that fires after it was replaced or disarmed is dropped, so a
// replaced timeout can never fire.
type Watchdog struct {
	clock clock.Clock

	mu         sync.Mutex
	timer      *clock.Timer
	generation uint64
}

// New creates a watchdog driven by clk. A nil clock uses wall time.
func New(clk clock.Clock) *Watchdog {
	if clk == nil {
		clk = clock.New()
	}
	return &Watchdog{clock: clk}
}

// Arm starts or restarts the timeout. onTimeout runs on the timer's
// goroutine at most once, unless Arm is called again.
func (w *Watchdog) Arm(timeout time.Duration, onTimeout func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()
	w.generation++
	gen := w.generation

	w.timer = w.clock.AfterFunc(timeout, func() {
		w.mu.Lock()
		if w.generation != gen || w.timer == nil {
			w.mu.Unlock()
			return
		}
		w.timer = nil
		w.mu.Unlock()

		onTimeout()
	})
}

// Disarm cancels the pending timeout, if any. Safe to call repeatedly.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
	w.generation++
}

// Armed reports whether a timeout is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

func (w *Watchdog) stopLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
