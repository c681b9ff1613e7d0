// Package calendar models the market's daily trading session window and
// tracks whether a given date is a trading day.  Session times are
// time-of-day offsets from local midnight, so the same Session value works
// for any trading day.
package calendar

import (
	"sort"
	"time"
)

// DayChecker answers whether the market trades on a given date.  The remote
// trading-calendar client implements it; tests substitute fakes.
type DayChecker interface {
	IsTradingDay(date time.Time) (bool, error)
}

// Session is a daily trading session window.
type Session struct {
	Open  time.Duration
	Close time.Duration
}

// DefaultSession covers the mainland exchanges: 09:30 to 15:00.
var DefaultSession = Session{
	Open:  9*time.Hour + 30*time.Minute,
	Close: 15 * time.Hour,
}

// TimeOfDay returns t's offset from its local midnight.
func TimeOfDay(t time.Time) time.Duration {
	year, month, day := t.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	return t.Sub(midnight)
}

// Date truncates t to its local midnight.
func Date(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// IsOpenTime reports whether t's time-of-day falls inside the session
// window, boundaries included.
func (s Session) IsOpenTime(t time.Time) bool {
	tod := TimeOfDay(t)
	return tod >= s.Open && tod <= s.Close
}

// OpenAt returns the session open instant on the given day.
func (s Session) OpenAt(day time.Time) time.Time { return Date(day).Add(s.Open) }

// CloseAt returns the session close instant on the given day.
func (s Session) CloseAt(day time.Time) time.Time { return Date(day).Add(s.Close) }

// Length returns the session duration.
func (s Session) Length() time.Duration { return s.Close - s.Open }

// TradingDays returns the ordered trading days between begin and end
// inclusive, consulting the checker date by date.  Weekends are skipped
// without a lookup.  A checker error aborts the scan.
func TradingDays(begin, end time.Time, checker DayChecker) ([]time.Time, error) {
	var days []time.Time
	for day := Date(begin); !day.After(end); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		trading, err := checker.IsTradingDay(day)
		if err != nil {
			return nil, err
		}
		if trading {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}
