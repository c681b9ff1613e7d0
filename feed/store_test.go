package feed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotepulse/quotepulse/models"
)

var testID = models.MustParseStockID("sh.600000")

func quoteAt(hour, minute int, price string) *models.Quote {
	return &models.Quote{
		TradingTime: time.Date(2021, 3, 1, hour, minute, 0, 0, time.Local),
		Closing:     decimal.RequireFromString(price),
	}
}

func TestStoreRegister(t *testing.T) {
	t.Parallel()
	// --- given ---
	SUT := NewStore()

	// --- when / then ---
	assert.True(t, SUT.Register(testID))
	assert.False(t, SUT.Register(testID), "registering twice must not reset the entry")
	assert.True(t, SUT.Contains(testID))
	assert.Equal(t, []models.StockID{testID}, SUT.IDs())
}

func TestStoreRejectsUnknownStocks(t *testing.T) {
	t.Parallel()
	// --- given ---
	SUT := NewStore()

	// --- when / then ---
	assert.ErrorIs(t, SUT.AppendBaseline(testID, quoteAt(9, 30, "10.00")), ErrUnknownStock)
	assert.ErrorIs(t, SUT.AddIncoming(testID, quoteAt(9, 30, "10.00")), ErrUnknownStock)
	_, err := SUT.Baseline(testID)
	assert.ErrorIs(t, err, ErrUnknownStock)
	_, err = SUT.Since(testID, time.Now())
	assert.ErrorIs(t, err, ErrUnknownStock)
	assert.Nil(t, SUT.Latest(testID))
}

func TestStoreReconcileKeepsBaselineOrderedAndDuplicateFree(t *testing.T) {
	t.Parallel()
	// --- given ---
	SUT := NewStore()
	SUT.Register(testID)
	require.NoError(t, SUT.AppendBaseline(testID, quoteAt(9, 30, "10.00")))

	// --- when ---
	SUT.Reconcile(testID, quoteAt(9, 35, "10.05")) // newer, appended
	SUT.Reconcile(testID, quoteAt(9, 35, "10.05")) // same time, dropped
	SUT.Reconcile(testID, quoteAt(9, 32, "10.02")) // older, dropped
	SUT.Reconcile(testID, quoteAt(9, 40, "10.07")) // newer, appended

	// --- then ---
	baseline, err := SUT.Baseline(testID)
	require.NoError(t, err)
	require.Len(t, baseline, 3)
	for i := 1; i < len(baseline); i++ {
		assert.True(t, baseline[i].TradingTime.After(baseline[i-1].TradingTime),
			"baseline must be strictly increasing")
	}
}

func TestStoreLatestPrefersIncomingTail(t *testing.T) {
	t.Parallel()
	// --- given ---
	SUT := NewStore()
	SUT.Register(testID)
	require.NoError(t, SUT.AppendBaseline(testID, quoteAt(9, 30, "10.00")))

	// --- when ---
	require.NoError(t, SUT.AddIncoming(testID, quoteAt(9, 45, "10.08")))

	// --- then ---
	latest := SUT.Latest(testID)
	require.NotNil(t, latest)
	assert.True(t, latest.Closing.Equal(decimal.RequireFromString("10.08")))

	// reconciling the same quote moves it into the baseline and clears the
	// incoming buffer
	SUT.Reconcile(testID, quoteAt(9, 45, "10.08"))
	latest = SUT.Latest(testID)
	require.NotNil(t, latest)
	assert.True(t, latest.TradingTime.Equal(time.Date(2021, 3, 1, 9, 45, 0, 0, time.Local)))
	baseline, err := SUT.Baseline(testID)
	require.NoError(t, err)
	assert.Len(t, baseline, 2)
}

func TestStoreSince(t *testing.T) {
	t.Parallel()
	// --- given ---
	SUT := NewStore()
	SUT.Register(testID)
	for _, q := range []*models.Quote{quoteAt(9, 30, "10.00"), quoteAt(9, 35, "10.05"), quoteAt(9, 40, "10.07")} {
		require.NoError(t, SUT.AppendBaseline(testID, q))
	}
	require.NoError(t, SUT.AddIncoming(testID, quoteAt(9, 45, "10.08")))

	// --- when ---
	got, err := SUT.Since(testID, time.Date(2021, 3, 1, 9, 35, 0, 0, time.Local))

	// --- then ---
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].TradingTime.Equal(time.Date(2021, 3, 1, 9, 35, 0, 0, time.Local)))
	assert.True(t, got[2].TradingTime.Equal(time.Date(2021, 3, 1, 9, 45, 0, 0, time.Local)))
}
