package service

import "time"

// schoolClock reports the current time in loc, the school's timezone. A nil
// loc means UTC.
func schoolClock(loc *time.Location) func() time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time { return time.Now().In(loc) }
}
