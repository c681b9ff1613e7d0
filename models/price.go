package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RealtimePrice is the subscriber-facing view of a quote, pushed over the
// websocket both in live and playback mode.
type RealtimePrice struct {
	ID         StockID         `json:"id"`
	Time       time.Time       `json:"time"`
	Price      decimal.Decimal `json:"price"`
	PreClosing decimal.Decimal `json:"preClosing"`
	Opening    decimal.Decimal `json:"opening"`
	Highest    decimal.Decimal `json:"highest"`
	Lowest     decimal.Decimal `json:"lowest"`
	Volume     int64           `json:"volume"`
	Turnover   decimal.Decimal `json:"turnover"`
	Pinned     bool            `json:"pinned,omitempty"`
}

// NewRealtimePrice projects a Quote onto the wire DTO.
func NewRealtimePrice(q *Quote, id StockID) *RealtimePrice {
	if q == nil {
		return nil
	}
	return &RealtimePrice{
		ID:         id,
		Time:       q.TradingTime,
		Price:      q.Closing,
		PreClosing: q.PreClosing,
		Opening:    q.Opening,
		Highest:    q.Highest,
		Lowest:     q.Lowest,
		Volume:     q.TotalVolume,
		Turnover:   q.TotalTurnover,
	}
}
