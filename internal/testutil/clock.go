package testutil

import (
	"sync"
	"time"

	"github.com/sksthrs/mekiku/internal/ir"
)

// ManualClock is a wall clock that only moves when told to.
//
// Its Now method fits engine.WithNow, so local sends get predictable send
// times and the same scenario always produces the same journal.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now ir.Timestamp
}

// NewManualClock creates a clock showing start.
func NewManualClock(start ir.Timestamp) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current time.
func (c *ManualClock) Now() ir.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed; scenarios use it
// to simulate skewed peers.
func (c *ManualClock) Set(t ir.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) ir.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ir.Timestamp(d.Milliseconds())
	return c.now
}
