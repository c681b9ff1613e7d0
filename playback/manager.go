package playback

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/matryer/try.v1"

	"github.com/quotepulse/quotepulse/calendar"
	"github.com/quotepulse/quotepulse/models"
	"github.com/quotepulse/quotepulse/utils/log"
)

const (
	fetchAttempts = 3
	// resolution of the replayed history, in minutes
	barInterval = 5
)

// HistoryFetcher is the historical price collaborator (the baostock
// bridge).
type HistoryFetcher interface {
	FetchDailyPrices(id models.StockID, begin, end time.Time) ([]*models.DailyBar, error)
	FetchMinutelyPrices(id models.StockID, begin, end time.Time, interval int) ([]*models.MinuteBar, error)
}

// Manager owns one Simulation per subscriber token, plus the per-token
// per-stock trend delivery cursors.
type Manager struct {
	fetcher HistoryFetcher
	session calendar.Session
	step    time.Duration

	mu           sync.Mutex
	simulations  map[string]*Simulation
	trendIndices map[string]map[models.StockID]int
}

func NewManager(fetcher HistoryFetcher, session calendar.Session, step time.Duration) *Manager {
	if step <= 0 {
		step = DefaultStep
	}
	return &Manager{
		fetcher:      fetcher,
		session:      session,
		step:         step,
		simulations:  map[string]*Simulation{},
		trendIndices: map[string]map[models.StockID]int{},
	}
}

// Contains reports whether the token owns a simulation.
func (m *Manager) Contains(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.simulations[token]
	return ok
}

// Get returns the token's simulation.
func (m *Manager) Get(token string) (*Simulation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sim, ok := m.simulations[token]
	return sim, ok
}

// Initialize fetches the history of every requested stock across
// [begin, end], builds the per-stock sources and the trading-day list, and
// primes the simulation without arming its timer.  The trading days are the
// dates the daily history actually covers, so non-trading days never enter
// the replay.
func (m *Manager) Initialize(token string, ids []models.StockID, begin, end time.Time) (*Simulation, error) {
	sources := make([]*Source, len(ids))
	coveredDays := map[time.Time]struct{}{}
	for i, id := range ids {
		daily, err := m.fetchDaily(id, begin, end)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch daily history for %v", id)
		}
		preClosing := make(map[time.Time]*models.DailyBar, len(daily))
		for _, bar := range daily {
			day := calendar.Date(bar.Date.Time())
			preClosing[day] = bar
			coveredDays[day] = struct{}{}
		}

		minutely, err := m.fetchMinutely(id, begin, end)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch intraday history for %v", id)
		}
		quotes := make([]*models.RealtimePrice, 0, len(minutely))
		for _, bar := range minutely {
			price := &models.RealtimePrice{
				ID:       id,
				Time:     bar.Time.Time(),
				Price:    bar.Closing,
				Opening:  bar.Opening,
				Highest:  bar.Highest,
				Lowest:   bar.Lowest,
				Volume:   bar.Volume,
				Turnover: bar.Turnover,
			}
			if day, ok := preClosing[calendar.Date(bar.Time.Time())]; ok {
				price.PreClosing = day.PreClosing
			}
			quotes = append(quotes, price)
		}
		sources[i] = NewSource(quotes)
	}

	tradingDays := make([]time.Time, 0, len(coveredDays))
	for day := range coveredDays {
		tradingDays = append(tradingDays, day)
	}
	sort.Slice(tradingDays, func(i, j int) bool { return tradingDays[i].Before(tradingDays[j]) })

	sim := NewSimulation(sources, begin, end, tradingDays, m.session)
	sim.SetStep(m.step)

	m.mu.Lock()
	m.simulations[token] = sim
	m.trendIndices[token] = map[models.StockID]int{}
	m.mu.Unlock()

	sim.Start(false)
	log.Info("playback simulation for token %s primed: %d stocks, %d trading days", token, len(ids), len(tradingDays))
	return sim, nil
}

// Remove drops the token's simulation and cursors.  The caller is expected
// to have closed the simulation already.
func (m *Manager) Remove(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trendIndices, token)
	if _, ok := m.simulations[token]; !ok {
		return false
	}
	delete(m.simulations, token)
	return true
}

// GetList returns the current quote of every stock in the token's replay.
func (m *Manager) GetList(token string) []*models.RealtimePrice {
	sim, ok := m.Get(token)
	if !ok {
		return nil
	}
	return sim.List()
}

// GetTrend returns the quotes of one stock delivered since the token's last
// call for it, advancing the per-stock index.
func (m *Manager) GetTrend(token string, id models.StockID) ([]*models.RealtimePrice, error) {
	sim, ok := m.Get(token)
	if !ok {
		return nil, errors.Errorf("token %s has no active playback", token)
	}

	m.mu.Lock()
	indices := m.trendIndices[token]
	from, ok := indices[id]
	if !ok {
		from = 0
	}
	m.mu.Unlock()

	quotes, next, err := sim.TrendSince(id, from)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if indices, found := m.trendIndices[token]; found {
		indices[id] = next
	}
	m.mu.Unlock()
	return quotes, nil
}

func (m *Manager) fetchDaily(id models.StockID, begin, end time.Time) ([]*models.DailyBar, error) {
	var bars []*models.DailyBar
	err := try.Do(func(attempt int) (bool, error) {
		var err error
		bars, err = m.fetcher.FetchDailyPrices(id, begin, end)
		return attempt < fetchAttempts, err
	})
	return bars, err
}

func (m *Manager) fetchMinutely(id models.StockID, begin, end time.Time) ([]*models.MinuteBar, error) {
	var bars []*models.MinuteBar
	err := try.Do(func(attempt int) (bool, error) {
		var err error
		bars, err = m.fetcher.FetchMinutelyPrices(id, begin, end, barInterval)
		return attempt < fetchAttempts, err
	})
	return bars, err
}
