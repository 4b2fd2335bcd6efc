// Package clock provides the shared monotonic simulation clock.
//
// Every timer in the simulation (cast end, cooldown end, stun end, craft end,
// buff end, risky action) is an absolute reading of this clock. Readings are
// offsets from process start, never wall time, so persisted timers are stored
// as remaining durations and rehydrated against the new process's clock.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock returns the current reading of the shared network clock.
type Clock interface {
	Now() time.Duration
}

// Monotonic reads the process monotonic clock relative to its creation.
type Monotonic struct {
	start time.Time
}

// NewMonotonic creates a clock whose first reading is ~0.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns the elapsed time since the clock was created.
func (m *Monotonic) Now() time.Duration {
	return time.Since(m.start)
}

// Manual is a clock that only moves when told to. Used by tests and replay.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

// NewManual creates a manual clock at the given reading.
func NewManual(at time.Duration) *Manual {
	return &Manual{now: at}
}

// Now returns the current reading.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}

// Set jumps the clock to an absolute reading. Jumping backwards is allowed so
// tests can simulate a process restart with a fresh clock.
func (m *Manual) Set(at time.Duration) {
	m.mu.Lock()
	m.now = at
	m.mu.Unlock()
}

// Frozen holds one reading of a source clock until the next Freeze. The
// engine freezes it at the start of every tick so all timers compared within
// a tick see the same instant.
type Frozen struct {
	source Clock
	now    atomic.Int64
}

// NewFrozen creates a frozen clock holding the source's current reading.
func NewFrozen(source Clock) *Frozen {
	f := &Frozen{source: source}
	f.Freeze()
	return f
}

// Freeze captures the source's current reading and returns it.
func (f *Frozen) Freeze() time.Duration {
	now := f.source.Now()
	f.now.Store(int64(now))
	return now
}

// Now returns the last frozen reading.
func (f *Frozen) Now() time.Duration {
	return time.Duration(f.now.Load())
}

// Remaining returns how long until end, or 0 if end has passed.
func Remaining(c Clock, end time.Duration) time.Duration {
	now := c.Now()
	if now >= end {
		return 0
	}
	return end - now
}

// Elapsed reports whether end has been reached.
func Elapsed(c Clock, end time.Duration) bool {
	return c.Now() >= end
}
