package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// DailyBar is one day of OHLC history from the historical price bridge.
type DailyBar struct {
	Date       BarTime         `json:"date"`
	Opening    decimal.Decimal `json:"opening"`
	Closing    decimal.Decimal `json:"closing"`
	PreClosing decimal.Decimal `json:"preClosing"`
	Highest    decimal.Decimal `json:"highest"`
	Lowest     decimal.Decimal `json:"lowest"`
	Volume     int64           `json:"volume"`
	Turnover   decimal.Decimal `json:"turnover"`
}

// MinuteBar is one intraday bar from the historical price bridge.
type MinuteBar struct {
	Time     BarTime         `json:"time"`
	Opening  decimal.Decimal `json:"opening"`
	Closing  decimal.Decimal `json:"closing"`
	Highest  decimal.Decimal `json:"highest"`
	Lowest   decimal.Decimal `json:"lowest"`
	Volume   int64           `json:"volume"`
	Turnover decimal.Decimal `json:"turnover"`
}

// BarTime wraps the date formats the bridge emits ("2006-01-02" with an
// optional time part).
type BarTime time.Time

func (t BarTime) Time() time.Time { return time.Time(t) }

func (t BarTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(dateTimeLayout) + `"`), nil
}

func (t *BarTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	layout := dateTimeLayout
	if len(s) == len(dateLayout) {
		layout = dateLayout
	}
	parsed, err := time.ParseInLocation(layout, s, time.Local)
	if err != nil {
		return err
	}
	*t = BarTime(parsed)
	return nil
}
