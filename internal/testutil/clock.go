package testutil

import (
	"sync"
	"time"
)

// Epoch is the first timestamp a DeterministicClock returns.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock hands out strictly increasing RFC 3339 timestamps,
// one second apart, starting at Epoch.
//
// Timestamps are fixed-width UTC, so they compare lexically in the same
// order they were issued.
//
// Thread-safety: All methods are safe for concurrent use.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first Next() returns Epoch.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next returns the next timestamp.
func (c *DeterministicClock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := At(c.seq)
	c.seq++
	return ts
}

// Reset restarts the clock at Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// At returns the timestamp n seconds after Epoch.
func At(n int64) string {
	return Epoch.Add(time.Duration(n) * time.Second).Format(time.RFC3339)
}
