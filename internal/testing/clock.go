package testing

import (
	"sync"
	"time"
)

// FakeClock starts at a fixed instant and advances only when waited on.
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	Waits []time.Duration
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After advances the clock by d and returns a channel that already holds the new time.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.Waits = append(c.Waits, d)

	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}
