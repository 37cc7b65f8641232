package queue

import (
	"sync"
	"time"
)

// Clock is the worker's shared time domain, in seconds.
//
// All timers map their local time into this domain so that firings from
// different timers can be ordered against each other.
type Clock interface {
	Now() float64
}

// RealClock reports monotonic seconds since it was created.
type RealClock struct {
	epoch time.Time
}

// NewRealClock creates a clock whose zero is the current instant.
func NewRealClock() *RealClock {
	return &RealClock{epoch: time.Now()}
}

// Now returns seconds elapsed since the clock was created.
func (c *RealClock) Now() float64 {
	return time.Since(c.epoch).Seconds()
}

// ManualClock is a clock that only moves when told to.
// It is used for deterministic tests and the scenario simulator.
//
// ManualClock IS safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

// NewManualClock creates a manual clock reading start.
func NewManualClock(start float64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed; the worker treats
// time as a reading, not as a monotonic counter.
func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d seconds and returns the new reading.
func (c *ManualClock) Advance(d float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
