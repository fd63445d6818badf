package clock

import (
	"sync"
	"time"
)

// LiveClock reads the system clock
type LiveClock struct{}

func NewLiveClock() *LiveClock {
	return &LiveClock{}
}

// TimestampNs returns the current UNIX time in nanoseconds
func (c *LiveClock) TimestampNs() uint64 {
	return uint64(time.Now().UnixNano())
}

// TestClock only moves when told to
type TestClock struct {
	mu sync.Mutex
	ns uint64
}

func NewTestClock(ns uint64) *TestClock {
	return &TestClock{ns: ns}
}

func (c *TestClock) TimestampNs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ns
}

func (c *TestClock) SetTime(ns uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ns = ns
}

// Advance moves the clock forward by d and returns the new time
func (c *TestClock) Advance(d time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ns += uint64(d.Nanoseconds())
	return c.ns
}
