package app

import "sync"

// Clock is the per-question countdown. It holds {secondsLeft, expired} and is
// driven by an external tick source; the expiry callback fires exactly once
// per armed period, when the countdown reaches zero.
type Clock struct {
	mu          sync.Mutex
	limit       int
	secondsLeft int
	expired     bool
	onExpire    func()
}

// NewClock returns a clock armed with limit seconds. onExpire may be nil.
func NewClock(limit int, onExpire func()) *Clock {
	return &Clock{limit: limit, secondsLeft: limit, onExpire: onExpire}
}

// Tick counts down one second. At zero it clamps, marks the clock expired and
// fires the expiry callback; ticks past zero are no-ops until the next Reset.
func (c *Clock) Tick() {
	c.mu.Lock()
	if c.expired || c.secondsLeft <= 0 {
		c.mu.Unlock()
		return
	}
	c.secondsLeft--
	fire := c.secondsLeft == 0
	if fire {
		c.expired = true
	}
	callback := c.onExpire
	c.mu.Unlock()

	// Fired outside the lock so the callback may Reset or inspect the clock.
	if fire && callback != nil {
		callback()
	}
}

// Reset re-arms the countdown to limit seconds and clears the expired latch.
func (c *Clock) Reset(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
	c.secondsLeft = limit
	c.expired = false
}

// ClearExpired drops the expired latch without touching the remaining time.
// Used when an answer lands after expiry so it cannot double-fire advancement.
func (c *Clock) ClearExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = false
}

// SecondsLeft reports the remaining time for the current question.
func (c *Clock) SecondsLeft() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secondsLeft
}

// Expired reports whether the countdown ran out since the last reset.
func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}
