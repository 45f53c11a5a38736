package utils

import (
	"time"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
