package feed

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/matryer/try.v1"

	"github.com/quotepulse/quotepulse/calendar"
	"github.com/quotepulse/quotepulse/models"
	"github.com/quotepulse/quotepulse/timer"
	"github.com/quotepulse/quotepulse/utils/log"
)

const seedAttempts = 3

// Fetcher pulls the current quote for a batch of stocks in one upstream
// call.
type Fetcher interface {
	FetchCurrentQuotes(ids []models.StockID) (map[models.StockID]*models.Quote, error)
}

// Synchronizer keeps the quote store fresh within one polling interval while
// the market is open, and serves the per-subscriber delivery views.
type Synchronizer struct {
	store   *Store
	fetcher Fetcher
	tracker *calendar.Tracker
	session calendar.Session

	poll          *timer.Timer
	statusUpdater *timer.Timer
	restarter     *timer.Timer
	auxOnce       sync.Once

	// cycleDone is the at-most-one-in-flight guard: a polling tick that
	// finds the previous cycle unfinished is dropped, not queued.
	cycleDone   atomic.Bool
	initialized atomic.Bool

	now func() time.Time

	cursorMu  sync.Mutex
	trendSeen map[string]time.Time
	listSeen  map[string]time.Time
}

// NewSynchronizer wires the collaborators together.  Nothing runs until
// Initialize is called with the first subscription.
func NewSynchronizer(fetcher Fetcher, checker calendar.DayChecker, session calendar.Session, interval time.Duration) *Synchronizer {
	s := &Synchronizer{
		store:     NewStore(),
		fetcher:   fetcher,
		tracker:   calendar.NewTracker(checker),
		session:   session,
		now:       time.Now,
		trendSeen: map[string]time.Time{},
		listSeen:  map[string]time.Time{},
	}
	s.cycleDone.Store(true)
	s.poll = timer.New(interval, s.cycle).Immediate()
	return s
}

// Initialized reports whether the synchronizer has received its stock list.
func (s *Synchronizer) Initialized() bool { return s.initialized.Load() }

// Stopped reports whether polling is currently disarmed (market closed).
func (s *Synchronizer) Stopped() bool { return !s.poll.Active() }

// TradeOff reports whether trading is off right now: outside session hours
// or not a trading day.
func (s *Synchronizer) TradeOff() bool {
	return !s.session.IsOpenTime(s.now()) || !s.tracker.IsTradingDay()
}

// Contains reports whether id is part of the current subscription set.
func (s *Synchronizer) Contains(id models.StockID) bool { return s.store.Contains(id) }

// Initialize registers the given stock ids (existing ids are untouched),
// seeds their baselines with one synchronous fetch, and arms the polling and
// auxiliary timers.  Safe to call again with additional ids.
func (s *Synchronizer) Initialize(ids []models.StockID) error {
	seed := make([]models.StockID, 0, len(ids))
	for _, id := range ids {
		if s.store.Register(id) {
			seed = append(seed, id)
		}
	}

	s.tracker.Refresh(s.now())
	s.auxOnce.Do(s.armAuxTimers)

	if len(seed) > 0 {
		var quotes map[models.StockID]*models.Quote
		err := try.Do(func(attempt int) (bool, error) {
			var err error
			quotes, err = s.fetcher.FetchCurrentQuotes(seed)
			return attempt < seedAttempts, err
		})
		if err != nil {
			return errors.Wrap(err, "failed to seed quote baselines")
		}
		for id, q := range quotes {
			if err := s.store.AppendBaseline(id, q); err != nil {
				return err
			}
		}
	}

	s.poll.Start()
	s.initialized.Store(true)
	return nil
}

// armAuxTimers starts the daily trading-day refresh at local midnight and
// the polling restarter at session open.
func (s *Synchronizer) armAuxTimers() {
	s.statusUpdater = timer.Daily(0, func() {
		s.tracker.Refresh(s.now())
	})
	s.statusUpdater.Start()

	s.restarter = timer.Daily(s.session.Open, func() {
		if !s.poll.Active() && s.tracker.IsTradingDay() {
			s.poll.Start()
			log.Info("quote synchronizer restarted at session open")
		}
	})
	s.restarter.Start()
}

// cycle is one polling tick.  When trading is off the polling timer stops
// itself; the restarter re-arms it at the next session open.
func (s *Synchronizer) cycle(int) {
	if s.TradeOff() {
		s.poll.Stop()
		log.Info("trading is off, quote synchronizer stopped")
	}
	if !s.cycleDone.CompareAndSwap(true, false) {
		return
	}
	defer s.cycleDone.Store(true)

	ids := s.store.IDs()
	quotes, err := s.fetcher.FetchCurrentQuotes(ids)
	if err != nil {
		// retried implicitly on the next scheduled tick
		log.Error("quote sync cycle failed: %v", err)
		return
	}
	for id, q := range quotes {
		s.store.Reconcile(id, q)
	}
}

// Add buffers an externally pushed quote (live event feed) until the next
// cycle reconciles it.
func (s *Synchronizer) Add(id models.StockID, q *models.Quote) error {
	return s.store.AddIncoming(id, q)
}

// GetList returns the latest known quote of every tracked stock, or nil
// before initialization and while polling is stopped.
func (s *Synchronizer) GetList(token string) []*models.RealtimePrice {
	if !s.initialized.Load() || s.Stopped() {
		return nil
	}
	s.cursorMu.Lock()
	s.listSeen[token] = s.now()
	s.cursorMu.Unlock()

	ids := s.store.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	prices := make([]*models.RealtimePrice, 0, len(ids))
	for _, id := range ids {
		if p := models.NewRealtimePrice(s.store.Latest(id), id); p != nil {
			prices = append(prices, p)
		}
	}
	return prices
}

// GetTrend returns the delta of id's history since the token's last
// non-empty delivery.  The first call returns the whole baseline.  The
// cursor only advances when the result is non-empty, so a quote arriving
// late is still delivered on the next call.
func (s *Synchronizer) GetTrend(token string, id models.StockID) ([]*models.RealtimePrice, error) {
	if !s.initialized.Load() || s.Stopped() {
		return nil, nil
	}
	if !s.store.Contains(id) {
		return nil, ErrUnknownStock
	}

	s.cursorMu.Lock()
	cursor, seen := s.trendSeen[token]
	if !seen {
		s.trendSeen[token] = s.now()
	}
	s.cursorMu.Unlock()

	if !seen {
		baseline, err := s.store.Baseline(id)
		if err != nil {
			return nil, err
		}
		return toPrices(baseline, id), nil
	}

	quotes, err := s.store.Since(id, cursor)
	if err != nil {
		return nil, err
	}
	if len(quotes) > 0 {
		s.cursorMu.Lock()
		s.trendSeen[token] = s.now()
		s.cursorMu.Unlock()
	}
	return toPrices(quotes, id), nil
}

// RemoveToken releases the delivery cursors of a disconnected subscriber.
func (s *Synchronizer) RemoveToken(token string) {
	s.cursorMu.Lock()
	delete(s.trendSeen, token)
	delete(s.listSeen, token)
	s.cursorMu.Unlock()
}

// Close permanently disposes all timers.
func (s *Synchronizer) Close() {
	s.poll.Close()
	if s.statusUpdater != nil {
		s.statusUpdater.Close()
	}
	if s.restarter != nil {
		s.restarter.Close()
	}
}

func toPrices(quotes []*models.Quote, id models.StockID) []*models.RealtimePrice {
	prices := make([]*models.RealtimePrice, 0, len(quotes))
	for _, q := range quotes {
		prices = append(prices, models.NewRealtimePrice(q, id))
	}
	return prices
}
