package ledger

import (
	"sync"
	"time"
)

// Clock is the source of the ledger's wall clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock returns a Clock backed by the local system time.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// monotonicClock reports unix timestamps that never go backwards, regardless
// of the underlying clock.
type monotonicClock struct {
	mu     sync.Mutex
	clock  Clock
	latest int64
}

func (c *monotonicClock) unixTimestamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now().Unix()
	if now > c.latest {
		c.latest = now
	}
	if c.latest < 0 {
		return 0
	}
	return uint64(c.latest)
}
