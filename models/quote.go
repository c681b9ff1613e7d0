package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one market tick for one stock as delivered by an upstream feed.
// Quotes are never mutated after creation; the feed and playback packages
// share pointers to them freely.
type Quote struct {
	TradingTime    time.Time
	PreClosing     decimal.Decimal
	Opening        decimal.Decimal
	Highest        decimal.Decimal
	Lowest         decimal.Decimal
	HighLimited    decimal.Decimal
	LowLimited     decimal.Decimal
	Closing        decimal.Decimal
	AskPrices      [5]decimal.Decimal
	AskVolumes     [5]int64
	BidPrices      [5]decimal.Decimal
	BidVolumes     [5]int64
	NumberOfTrades int
	TotalVolume    int64
	TotalTurnover  decimal.Decimal
}
