// Package scheduling contains the pure parts of the consultation scheduling
// engine: interval math, slot-grid generation and the clock they read time
// from. Nothing in here touches storage.
package scheduling

import "time"

// Clock supplies the current time. Production code uses SystemClock; tests
// substitute a fixed clock so time-based guards are checked without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.Time }
