package nvrdb

import "time"

// Clocks is injectable wall-clock access, grounded on the original's
// `clocks().realtime()` seam — lets tests pin "now" instead of reaching
// for the system clock.
type Clocks interface {
	Realtime() time.Time
}

// RealClocks is the production Clocks, backed by time.Now.
type RealClocks struct{}

func (RealClocks) Realtime() time.Time { return time.Now() }

// TestClock is a settable Clocks for deterministic tests.
type TestClock struct {
	Now time.Time
}

func (c *TestClock) Realtime() time.Time { return c.Now }

// Time90k converts a time.Time to 90kHz ticks since the Unix epoch.
func Time90k(t time.Time) int64 {
	return t.Unix()*90000 + int64(t.Nanosecond())*9/100000
}
