package playback

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/quotepulse/quotepulse/calendar"
	"github.com/quotepulse/quotepulse/models"
	"github.com/quotepulse/quotepulse/timer"
)

// DefaultStep is the virtual time one tick advances by, matching the
// 5-minute resolution of the historical bars.
const DefaultStep = 5 * time.Minute

// Simulation is the shared virtual clock of one playback session.  now only
// moves forward while started and not finished, always stays within
// [begin, end], and outside session boundaries always falls inside a trading
// session of one of the trading days.
type Simulation struct {
	mu sync.Mutex

	sources     []*Source
	tradingDays []time.Time
	session     calendar.Session
	begin, end  time.Time
	step        time.Duration

	now      time.Time
	dayIndex int

	started  bool
	stopped  bool
	finished bool

	timer      *timer.Timer
	onFinished func()
}

// NewSimulation builds the virtual clock over the given per-stock sources.
// begin and end are clamped to the session windows of the first and last
// trading day; an end at exactly midnight means "through that whole day".
func NewSimulation(sources []*Source, begin, end time.Time, tradingDays []time.Time, session calendar.Session) *Simulation {
	s := &Simulation{
		sources:     sources,
		tradingDays: tradingDays,
		session:     session,
		step:        DefaultStep,
	}
	if len(tradingDays) > 0 {
		first, last := tradingDays[0], tradingDays[len(tradingDays)-1]
		if calendar.Date(begin).Equal(first) && calendar.TimeOfDay(begin) >= session.Open {
			s.begin = begin
		} else {
			s.begin = session.OpenAt(first)
		}
		if calendar.TimeOfDay(end) == 0 {
			end = end.AddDate(0, 0, 1)
		}
		if calendar.Date(end).Equal(last) && calendar.TimeOfDay(end) <= session.Close {
			s.end = end
		} else {
			s.end = session.CloseAt(last)
		}
	}
	return s
}

// SetStep overrides the virtual duration of one tick.
func (s *Simulation) SetStep(step time.Duration) {
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
}

// Bind attaches the driving timer; every fire advances the clock by one
// step.  The timer is closed when the simulation finishes or is closed.
func (s *Simulation) Bind(t *timer.Timer) {
	s.mu.Lock()
	s.timer = t
	s.mu.Unlock()
}

// OnFinished registers the hook fired exactly once when the replay reaches
// its end.
func (s *Simulation) OnFinished(f func()) {
	s.mu.Lock()
	s.onFinished = f
	s.mu.Unlock()
}

// Now returns the virtual clock.
func (s *Simulation) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Simulation) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Simulation) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Simulation) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Start begins the replay.  The first call resets every source cursor, sets
// the clock to the beginning (or marks an empty calendar finished right
// away) and performs one zero-duration tick to populate initial cursor
// positions.  Later calls only clear the stopped flag.  startTimer controls
// whether the driving timer is armed.
func (s *Simulation) Start(startTimer bool) {
	s.mu.Lock()
	var first bool
	if !s.started {
		first = true
		s.started = true
		s.finished = false
		s.dayIndex = 0
		if len(s.tradingDays) == 0 {
			s.finished = true
		} else {
			s.now = s.begin
		}
		for _, src := range s.sources {
			src.reset()
		}
	}
	s.stopped = false
	t := s.timer
	finished := s.finished
	s.mu.Unlock()

	if first {
		if finished {
			s.finish()
		} else {
			s.Tick(0)
		}
	}
	if startTimer && t != nil && !s.Finished() {
		t.Start()
	}
}

// Stop pauses the replay without touching the virtual clock.
func (s *Simulation) Stop() {
	s.mu.Lock()
	s.stopped = true
	t := s.timer
	s.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// Close permanently disposes the driving timer.
func (s *Simulation) Close() {
	s.mu.Lock()
	t := s.timer
	s.mu.Unlock()
	if t != nil {
		t.Close()
	}
}

// Step advances the clock by the configured step; the driving timer calls
// this on every fire.
func (s *Simulation) Step() bool {
	s.mu.Lock()
	step := s.step
	s.mu.Unlock()
	return s.Tick(step)
}

// Tick advances the virtual clock by d.  Reaching end (or the final trading
// day's session close) finishes the replay; crossing an intermediate session
// close jumps the clock across the overnight gap to the next trading day.
// Source cursors are advanced afterwards either way.  Returns false once
// finished.
func (s *Simulation) Tick(d time.Duration) bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}

	s.now = s.now.Add(d)
	var justFinished bool
	tod := calendar.TimeOfDay(s.now)
	switch {
	case !s.now.Before(s.end) || (s.dayIndex == len(s.tradingDays)-1 && tod >= s.session.Close):
		if s.now.After(s.end) {
			s.now = s.end
		}
		s.finished = true
		justFinished = true
	case tod >= s.session.Close:
		// skip the non-trading interval between this session's close and
		// the next trading day's open
		gap := s.tradingDays[s.dayIndex+1].Sub(s.tradingDays[s.dayIndex]) - s.session.Length()
		s.now = s.now.Add(gap)
		s.dayIndex++
	}

	for _, src := range s.sources {
		src.advance(s.now)
	}
	s.mu.Unlock()

	if justFinished {
		s.finish()
	}
	return true
}

// finish closes the driving timer and fires the hook.  The finished flag is
// only ever set once, so the hook cannot fire twice.
func (s *Simulation) finish() {
	s.mu.Lock()
	t := s.timer
	hook := s.onFinished
	s.mu.Unlock()
	if t != nil {
		t.Close()
	}
	if hook != nil {
		hook()
	}
}

// List returns the current quote of every source that has started.
func (s *Simulation) List() []*models.RealtimePrice {
	s.mu.Lock()
	defer s.mu.Unlock()
	prices := make([]*models.RealtimePrice, 0, len(s.sources))
	for _, src := range s.sources {
		if current := src.Current(); current != nil {
			prices = append(prices, current)
		}
	}
	return prices
}

// IDs returns the stock ids of the sources.
func (s *Simulation) IDs() []models.StockID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]models.StockID, 0, len(s.sources))
	for _, src := range s.sources {
		if id := src.ID(); !id.IsZero() {
			ids = append(ids, id)
		}
	}
	return ids
}

// TrendSince returns the delivered quotes of the given stock from index
// `from` up to the cursor, plus the index to resume from.
func (s *Simulation) TrendSince(id models.StockID, from int) ([]*models.RealtimePrice, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range s.sources {
		if src.ID() == id {
			quotes, next := src.since(from)
			return quotes, next, nil
		}
	}
	return nil, from, errors.Errorf("stock %v doesn't exist in current playback list", id)
}
