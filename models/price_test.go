package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRealtimePrice(t *testing.T) {
	t.Parallel()
	// --- given ---
	id := MustParseStockID("sh.600000")
	quote := &Quote{
		TradingTime:   time.Date(2021, 3, 1, 9, 45, 0, 0, time.Local),
		PreClosing:    decimal.RequireFromString("10.00"),
		Opening:       decimal.RequireFromString("10.10"),
		Highest:       decimal.RequireFromString("10.20"),
		Lowest:        decimal.RequireFromString("9.90"),
		Closing:       decimal.RequireFromString("10.08"),
		TotalVolume:   1000000,
		TotalTurnover: decimal.RequireFromString("10100000.00"),
	}

	// --- when ---
	price := NewRealtimePrice(quote, id)

	// --- then ---
	require.NotNil(t, price)
	assert.Equal(t, id, price.ID)
	assert.True(t, price.Time.Equal(quote.TradingTime))
	assert.True(t, price.Price.Equal(quote.Closing))
	assert.True(t, price.PreClosing.Equal(quote.PreClosing))
	assert.Equal(t, int64(1000000), price.Volume)
	assert.False(t, price.Pinned)
}

func TestNewRealtimePriceOfNilQuote(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewRealtimePrice(nil, MustParseStockID("sh.600000")))
}
