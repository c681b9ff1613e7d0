package sina

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quotepulse/quotepulse/models"
)

// minRowFields covers everything up to the trading date and time columns.
const minRowFields = 32

// parseRow parses one assignment of the form
//
//	var hq_str_sh600000="...,open,preclose,price,high,low,...,date,time,00";
//
// The stock id is the trailing 8 characters of the variable name.
func parseRow(row string) (models.StockID, *models.Quote, error) {
	name, content, found := strings.Cut(row, "=")
	if !found {
		return models.StockID{}, nil, fmt.Errorf("row has no assignment: %q", row)
	}
	if len(name) < 8 {
		return models.StockID{}, nil, fmt.Errorf("row variable %q is too short to hold a stock id", name)
	}
	raw := name[len(name)-8:]
	id, err := models.ParseStockID(raw[:2] + "." + raw[2:])
	if err != nil {
		return models.StockID{}, nil, err
	}

	content = strings.TrimSuffix(strings.TrimPrefix(content, `"`), `";`)
	fields := strings.Split(content, ",")
	if len(fields) < minRowFields {
		return models.StockID{}, nil, fmt.Errorf("row for %v has %d fields, expected at least %d", id, len(fields), minRowFields)
	}

	var parseErr error
	dec := func(i int) decimal.Decimal {
		d, err := decimal.NewFromString(fields[i])
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("bad decimal in field %d for %v: %w", i, id, err)
		}
		return d
	}
	vol := func(i int) int64 {
		v, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("bad volume in field %d for %v: %w", i, id, err)
		}
		return v
	}

	quote := &models.Quote{
		Opening:       dec(1),
		PreClosing:    dec(2),
		Closing:       dec(3),
		Highest:       dec(4),
		Lowest:        dec(5),
		TotalVolume:   vol(8),
		TotalTurnover: dec(9),
	}

	// 5-level ladders: volume and price columns alternate, asks first.
	for level := 0; level < 5; level++ {
		quote.AskVolumes[level] = vol(10 + 2*level)
		quote.AskPrices[level] = dec(11 + 2*level)
		quote.BidVolumes[level] = vol(20 + 2*level)
		quote.BidPrices[level] = dec(21 + 2*level)
	}
	if parseErr != nil {
		return models.StockID{}, nil, parseErr
	}

	quote.TradingTime, err = time.ParseInLocation("2006-01-02 15:04:05", fields[30]+" "+fields[31], time.Local)
	if err != nil {
		return models.StockID{}, nil, fmt.Errorf("bad trading time for %v: %w", id, err)
	}
	return id, quote, nil
}
