package service

import "time"

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// SystemClock is the wall clock, truncated to whole seconds to match JWT NumericDate precision.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
