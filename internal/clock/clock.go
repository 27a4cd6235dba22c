// Package clock provides helpers for time-related operations.
package clock

import "time"

// Func returns the current time. Components take one so tests can pin it.
type Func func() time.Time

// NowUTC returns the current time in UTC truncated to whole seconds.
func NowUTC() time.Time {
	return TruncateUTC(time.Now())
}

// TruncateUTC converts t to UTC and drops sub-second precision.
func TruncateUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Fixed returns a Func that always reports t.
func Fixed(t time.Time) Func {
	return func() time.Time { return t }
}
