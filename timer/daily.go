package timer

import "time"

// Daily returns a timer that fires f once a day at the given local
// time-of-day offset from midnight (e.g. 9*time.Hour+30*time.Minute for
// 09:30).  The returned timer is not started.
func Daily(at time.Duration, f func()) *Timer {
	return NewDynamic(func(int) time.Duration {
		return UntilNext(time.Now(), at)
	}, func(int) { f() })
}

// UntilNext returns the duration from now until the next occurrence of the
// given time-of-day.  If now is already past it, the occurrence is tomorrow.
func UntilNext(now time.Time, at time.Duration) time.Duration {
	year, month, day := now.Date()
	next := time.Date(year, month, day, 0, 0, 0, 0, now.Location()).Add(at)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
