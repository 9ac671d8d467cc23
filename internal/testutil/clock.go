package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start of test clocks.
var Epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// DeterministicClock is a thread-safe stepping clock for tests.
//
// Every call to Now returns the current instant and then advances it by the
// step, so lastPersistedDate values are distinct and reproducible.
// DeterministicClock can be reset for test reuse.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewDeterministicClock creates a clock starting at start that advances by
// step per call.
//
// The first call to Now() returns start.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, step: step}
}

// Now returns the current instant and advances the clock.
//
// Thread-safe: uses mutex to protect calls.
// Monotonic: never decreases for a non-negative step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Current returns the instant the next Now() will return, without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.calls) * c.step)
}

// Calls returns how many times Now() was called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), the next call to Now() returns start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
