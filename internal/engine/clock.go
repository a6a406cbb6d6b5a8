package engine

import "sync/atomic"

// Clock is the monotonic logical clock that defines a tick.
//
// The stamp only moves when the driver calls Tick; nothing else in a network
// advances time. Chains compare the stamp against their last-seen value to
// decide whether their cached sequence is still valid.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), so a
// logger or watcher goroutine may read the stamp. Only the driver ticks it.
type Clock struct {
	stamp atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific stamp.
// Used when a rebuilt network must continue an existing performance.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.stamp.Store(start)
	return c
}

// Tick advances the clock and returns the new stamp.
func (c *Clock) Tick() int64 {
	return c.stamp.Add(1)
}

// Stamp returns the current stamp without advancing it.
func (c *Clock) Stamp() int64 {
	return c.stamp.Load()
}
