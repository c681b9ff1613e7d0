package playback

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotepulse/quotepulse/calendar"
	"github.com/quotepulse/quotepulse/models"
)

var playbackID = models.MustParseStockID("sh.600000")

func pricePoint(day, hour, minute int, price string) *models.RealtimePrice {
	return &models.RealtimePrice{
		ID:    playbackID,
		Time:  time.Date(2021, 3, day, hour, minute, 0, 0, time.Local),
		Price: decimal.RequireFromString(price),
	}
}

func tradingDay(day int) time.Time {
	return time.Date(2021, 3, day, 0, 0, 0, 0, time.Local)
}

// historyOf builds one source covering the session of each given day with a
// bar every 5 minutes.
func historyOf(days ...int) *Source {
	var quotes []*models.RealtimePrice
	for _, day := range days {
		for at := 9*time.Hour + 30*time.Minute; at <= 15*time.Hour; at += 5 * time.Minute {
			quotes = append(quotes, &models.RealtimePrice{
				ID:    playbackID,
				Time:  tradingDay(day).Add(at),
				Price: decimal.RequireFromString("10.00"),
			})
		}
	}
	return NewSource(quotes)
}

func TestSimulationFinishesAtSessionClose(t *testing.T) {
	t.Parallel()
	// --- given ---
	src := historyOf(1)
	SUT := NewSimulation([]*Source{src},
		time.Date(2021, 3, 1, 14, 50, 0, 0, time.Local),
		time.Date(2021, 3, 1, 15, 0, 0, 0, time.Local),
		[]time.Time{tradingDay(1)}, calendar.DefaultSession)
	SUT.Start(false)
	require.True(t, SUT.Now().Equal(time.Date(2021, 3, 1, 14, 50, 0, 0, time.Local)))

	// --- when / then ---
	assert.True(t, SUT.Step())
	assert.True(t, SUT.Now().Equal(time.Date(2021, 3, 1, 14, 55, 0, 0, time.Local)))
	assert.False(t, SUT.Finished())

	assert.True(t, SUT.Step())
	assert.True(t, SUT.Now().Equal(time.Date(2021, 3, 1, 15, 0, 0, 0, time.Local)))
	assert.True(t, SUT.Finished())

	// further ticks neither advance the clock nor report progress
	assert.False(t, SUT.Step())
	assert.True(t, SUT.Now().Equal(time.Date(2021, 3, 1, 15, 0, 0, 0, time.Local)))
}

func TestSimulationSkipsTheOvernightGap(t *testing.T) {
	t.Parallel()
	// --- given ---
	// friday 03-05 and monday 03-08: crossing friday's close must land on
	// monday morning, carrying the remainder of the step
	src := historyOf(5, 8)
	SUT := NewSimulation([]*Source{src},
		time.Date(2021, 3, 5, 14, 58, 0, 0, time.Local),
		time.Date(2021, 3, 8, 15, 0, 0, 0, time.Local),
		[]time.Time{tradingDay(5), tradingDay(8)}, calendar.DefaultSession)
	SUT.Start(false)

	// --- when ---
	require.True(t, SUT.Step()) // 14:58 + 5m crosses the close by 3m

	// --- then ---
	assert.True(t, SUT.Now().Equal(time.Date(2021, 3, 8, 9, 33, 0, 0, time.Local)),
		"got %v", SUT.Now())
	assert.False(t, SUT.Finished())
}

func TestSimulationNowIsMonotonic(t *testing.T) {
	t.Parallel()
	// --- given ---
	src := historyOf(5, 8)
	SUT := NewSimulation([]*Source{src},
		time.Date(2021, 3, 5, 9, 30, 0, 0, time.Local),
		time.Date(2021, 3, 8, 15, 0, 0, 0, time.Local),
		[]time.Time{tradingDay(5), tradingDay(8)}, calendar.DefaultSession)
	SUT.Start(false)

	// --- when / then ---
	last := SUT.Now()
	for SUT.Step() {
		now := SUT.Now()
		assert.False(t, now.Before(last), "clock went backwards: %v -> %v", last, now)
		last = now
	}
	assert.True(t, SUT.Finished())
	assert.True(t, last.Equal(time.Date(2021, 3, 8, 15, 0, 0, 0, time.Local)))
}

func TestSimulationClampsTheWindowToSessionBounds(t *testing.T) {
	t.Parallel()
	// --- given ---
	src := historyOf(1)
	// begin before the open, end at midnight (meaning "the whole day")
	SUT := NewSimulation([]*Source{src},
		time.Date(2021, 3, 1, 0, 0, 0, 0, time.Local),
		time.Date(2021, 3, 1, 0, 0, 0, 0, time.Local),
		[]time.Time{tradingDay(1)}, calendar.DefaultSession)

	// --- when ---
	SUT.Start(false)

	// --- then ---
	assert.True(t, SUT.Now().Equal(time.Date(2021, 3, 1, 9, 30, 0, 0, time.Local)))
}

func TestSimulationWithNoTradingDaysFinishesImmediately(t *testing.T) {
	t.Parallel()
	// --- given ---
	var finished int32
	SUT := NewSimulation(nil,
		time.Date(2021, 3, 6, 0, 0, 0, 0, time.Local),
		time.Date(2021, 3, 7, 0, 0, 0, 0, time.Local),
		nil, calendar.DefaultSession)
	SUT.OnFinished(func() { atomic.AddInt32(&finished, 1) })

	// --- when ---
	SUT.Start(false)

	// --- then ---
	assert.True(t, SUT.Finished())
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
}

func TestSimulationFinishedHookFiresExactlyOnce(t *testing.T) {
	t.Parallel()
	// --- given ---
	var finished int32
	src := historyOf(1)
	SUT := NewSimulation([]*Source{src},
		time.Date(2021, 3, 1, 14, 55, 0, 0, time.Local),
		time.Date(2021, 3, 1, 15, 0, 0, 0, time.Local),
		[]time.Time{tradingDay(1)}, calendar.DefaultSession)
	SUT.OnFinished(func() { atomic.AddInt32(&finished, 1) })
	SUT.Start(false)

	// --- when ---
	SUT.Step()
	SUT.Step()
	SUT.Step()

	// --- then ---
	assert.True(t, SUT.Finished())
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
}

func TestSimulationStopAndResumeKeepTheClock(t *testing.T) {
	t.Parallel()
	// --- given ---
	src := historyOf(1)
	SUT := NewSimulation([]*Source{src},
		time.Date(2021, 3, 1, 9, 30, 0, 0, time.Local),
		time.Date(2021, 3, 1, 15, 0, 0, 0, time.Local),
		[]time.Time{tradingDay(1)}, calendar.DefaultSession)
	SUT.Start(false)
	SUT.Step()
	at := SUT.Now()

	// --- when ---
	SUT.Stop()
	require.True(t, SUT.Stopped())
	SUT.Start(false)

	// --- then ---
	// resuming must not rewind to the beginning
	assert.False(t, SUT.Stopped())
	assert.True(t, SUT.Now().Equal(at))
}

func TestSimulationDeliversQuotesUpToNow(t *testing.T) {
	t.Parallel()
	// --- given ---
	src := historyOf(1)
	SUT := NewSimulation([]*Source{src},
		time.Date(2021, 3, 1, 9, 30, 0, 0, time.Local),
		time.Date(2021, 3, 1, 15, 0, 0, 0, time.Local),
		[]time.Time{tradingDay(1)}, calendar.DefaultSession)

	// --- when ---
	SUT.Start(false)

	// --- then ---
	// the initial zero-duration tick delivers the 09:30 bar
	quotes, next, err := SUT.TrendSince(playbackID, 0)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].Time.Equal(time.Date(2021, 3, 1, 9, 30, 0, 0, time.Local)))
	assert.Equal(t, 1, next)

	// one step delivers exactly the next bar
	SUT.Step()
	quotes, next, err = SUT.TrendSince(playbackID, next)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].Time.Equal(time.Date(2021, 3, 1, 9, 35, 0, 0, time.Local)))
	assert.Equal(t, 2, next)

	// list mirrors the newest delivered bar
	list := SUT.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Time.Equal(time.Date(2021, 3, 1, 9, 35, 0, 0, time.Local)))
}

func TestSimulationTrendForUnknownStock(t *testing.T) {
	t.Parallel()
	// --- given ---
	SUT := NewSimulation([]*Source{historyOf(1)},
		time.Date(2021, 3, 1, 9, 30, 0, 0, time.Local),
		time.Date(2021, 3, 1, 15, 0, 0, 0, time.Local),
		[]time.Time{tradingDay(1)}, calendar.DefaultSession)
	SUT.Start(false)

	// --- when ---
	_, _, err := SUT.TrendSince(models.MustParseStockID("sz.000001"), 0)

	// --- then ---
	assert.Error(t, err)
}
