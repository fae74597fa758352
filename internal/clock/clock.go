// Package clock provides an injectable time source so that reconnect and
// heartbeat timers can be driven deterministically in tests.
//
// Production code takes a Clock (usually Real()); tests pass a FakeClock
// and move time forward with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	ch := notify.New(cfg, notify.Deps{Clock: c, ...})
//	c.WaitForTimers(1)
//	c.Advance(5 * time.Second)
package clock

import "time"

// Clock is the subset of the time package used by the client.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a Timer that fires once after d.
	NewTimer(d time.Duration) *Timer

	// NewTicker returns a Ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer delivers a single value on C. Stop releases it early.
type Timer struct {
	C <-chan time.Time

	stop func()
}

// Stop prevents the timer from firing. Safe to call more than once.
func (t *Timer) Stop() {
	if t.stop != nil {
		t.stop()
	}
}

// Ticker delivers periodic ticks on C. Call Stop to release it.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. No more ticks are delivered after Stop returns.
func (t *Ticker) Stop() {
	if t.stop != nil {
		t.stop()
	}
}
