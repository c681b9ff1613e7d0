package calendar

import (
	"sync"
	"time"

	"github.com/quotepulse/quotepulse/utils/log"
)

// Tracker caches today's trading-day status so the polling loop does not hit
// the remote calendar on every cycle.  Refresh is best effort: on a checker
// failure the previous status is kept, which at worst starts or stops
// polling at the wrong instant.
type Tracker struct {
	checker DayChecker

	mu         sync.RWMutex
	tradingDay bool
}

// NewTracker returns a tracker that assumes today is a trading day until the
// first successful refresh says otherwise.
func NewTracker(checker DayChecker) *Tracker {
	return &Tracker{checker: checker, tradingDay: true}
}

// IsTradingDay returns the cached status.
func (t *Tracker) IsTradingDay() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tradingDay
}

// Refresh re-queries the checker for the given date.
func (t *Tracker) Refresh(date time.Time) {
	trading, err := t.checker.IsTradingDay(date)
	if err != nil {
		log.Warn("trading-day check failed, keeping previous status: %v", err)
		return
	}
	t.mu.Lock()
	t.tradingDay = trading
	t.mu.Unlock()
	verb := "is"
	if !trading {
		verb = "isn't"
	}
	log.Info("%s %s a trade day", date.Format("2006-01-02"), verb)
}
