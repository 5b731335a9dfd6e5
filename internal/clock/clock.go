// Package clock provides the server-side time source used for window boundaries.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current server time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock, normalized to UTC microseconds so values survive a database round trip.
type System struct{}

// Now returns the current UTC time truncated to microseconds.
func (System) Now() time.Time { return Normalize(time.Now()) }

// Normalize converts t to UTC and truncates it to microsecond precision.
func Normalize(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

// Fixed is a manually driven clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at now.
func NewFixed(now time.Time) *Fixed { return &Fixed{now: Normalize(now)} }

// Now returns the frozen time.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = Normalize(f.now.Add(d))
	f.mu.Unlock()
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = Normalize(t)
	f.mu.Unlock()
}
