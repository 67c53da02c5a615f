package testfixtures

import (
	"sync"
	"time"
)

// Clock is a settable time source. Services take its NowFunc.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now, or time.Now for a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Unix returns the clock time in epoch seconds, the unit stored by sqlstore.
func (c *Clock) Unix() int64 {
	return c.Now().Unix()
}
