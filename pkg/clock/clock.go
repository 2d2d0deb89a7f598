// Package clock provides an injectable time source for components whose
// behavior is driven by wall-clock elapsed time (gain animations, release
// timers). Production code uses the wall clock; tests use Mock to simulate
// elapsed time deterministically instead of sleeping.
package clock

import "time"

// Clock is the time source injected into time-driven components.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker that delivers ticks at the given interval.
	NewTicker(d time.Duration) Ticker
}

// Ticker is a cancellable, restartable periodic timer.
type Ticker interface {
	// C returns the channel on which ticks are delivered.
	C() <-chan time.Time

	// Reset changes the tick interval and restarts the ticker.
	Reset(d time.Duration)

	// Stop stops tick delivery. Stopping an already-stopped ticker is a no-op.
	Stop()
}

// New returns a Clock backed by the system wall clock.
func New() Clock {
	return wallClock{}
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) NewTicker(d time.Duration) Ticker {
	return &wallTicker{t: time.NewTicker(d)}
}

type wallTicker struct {
	t       *time.Ticker
	stopped bool
}

func (wt *wallTicker) C() <-chan time.Time {
	return wt.t.C
}

func (wt *wallTicker) Reset(d time.Duration) {
	wt.t.Reset(d)
	wt.stopped = false
}

func (wt *wallTicker) Stop() {
	if wt.stopped {
		return
	}
	wt.t.Stop()
	wt.stopped = true
}
