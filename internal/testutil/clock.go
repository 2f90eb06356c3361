package testutil

import "sync"

// DefaultBaseTime is the first timestamp handed out by a new clock
// (2023-11-14T22:13:20Z).
const DefaultBaseTime int64 = 1700000000

// DeterministicClock hands out strictly increasing unix-second timestamps
// for fixtures, so the same fixture builder always yields identical records.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	base int64
	step int64
	n    int64
}

// NewDeterministicClock creates a clock starting at DefaultBaseTime that
// advances 60 seconds per call.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultBaseTime, 60)
}

// NewDeterministicClockAt creates a clock starting at base advancing step
// seconds per call.
func NewDeterministicClockAt(base, step int64) *DeterministicClock {
	return &DeterministicClock{base: base, step: step}
}

// Next returns the next timestamp. The first call returns base.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.base + c.n*c.step
	c.n++
	return ts
}

// Reset rewinds the clock so the next call returns base again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
