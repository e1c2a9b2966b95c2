// Package utils provides the logging, timing, and clock primitives shared
// by the detection runtime and the benchmark harness.
package utils

import (
	"sync"
	"time"
)

// Clock abstracts time so polling loops can be driven by a mock in tests.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
}

// RealClock delegates to the time package.
type RealClock struct{}

func NewRealClock() *RealClock { return &RealClock{} }

func (c *RealClock) Now() time.Time                  { return time.Now() }
func (c *RealClock) Since(t time.Time) time.Duration { return time.Since(t) }
func (c *RealClock) Sleep(d time.Duration)           { time.Sleep(d) }

// MockClock is a manually advanced clock. Its Sleep never blocks; it just
// moves time forward, so timing-sensitive tests run instantly.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock starts the mock at startTime.
func NewMockClock(startTime time.Time) *MockClock {
	return &MockClock{now: startTime}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Sleep advances the clock by d instead of blocking.
func (c *MockClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
