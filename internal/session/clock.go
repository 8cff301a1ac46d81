package session

import "time"

// Clock is the session's time source. The engine samples it on every
// intent; tests substitute a fake to drive countdowns deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
