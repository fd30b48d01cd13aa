package engine

import "time"

// Clock supplies wall time to the engine. Staleness and GC decisions are
// age comparisons against Now(), so injecting a clock makes every
// time-dependent path deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
