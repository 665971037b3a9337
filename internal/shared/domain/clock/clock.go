// Package clock is the single source of "now" for scheduling decisions:
// job due times, retry backoff, claim leases and reporting windows.
//
// Production code calls clock.Now(). Tests pin or step time:
//
//	clock.Set(clock.FixedClock{Time: t0})
//	t.Cleanup(clock.Reset)
//
//	manual := clock.NewManual(t0)
//	clock.Set(manual)
//	manual.Advance(30 * time.Second) // a backoff has elapsed
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

var (
	mu      sync.RWMutex
	current Clock = RealClock{}
)

// Now returns the current time from the active clock.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return current.Now()
}

// Since is clock.Now().Sub(t).
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// Set replaces the active clock.
func Set(c Clock) {
	mu.Lock()
	defer mu.Unlock()
	current = c
}

// Reset restores the real clock. Call in test cleanup.
func Reset() {
	Set(RealClock{})
}

// RealClock uses the system time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns Time.
type FixedClock struct {
	Time time.Time
}

func (c FixedClock) Now() time.Time {
	return c.Time
}

// Manual is a clock moved explicitly by the test, e.g. past a retry delay
// or a lease expiry.
type Manual struct {
	mu sync.Mutex
	t  time.Time
}

// NewManual starts a manual clock at t.
func NewManual(t time.Time) *Manual {
	return &Manual{t: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = m.t.Add(d)
}
