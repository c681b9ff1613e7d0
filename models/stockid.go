package models

import (
	"fmt"
	"regexp"
	"strings"
)

// stock ids come in two shapes: "sh.600000" (prefix) and "600000.sh" (suffix)
var stockIDPattern = regexp.MustCompile(`^(?:([a-zA-Z]{2})\.(\d{6})|(\d{6})\.([a-zA-Z]{2}))$`)

// StockID identifies one security: a two-letter exchange code plus a 6-digit
// security code.  Both parts are normalized to lower case on construction so
// that values compare equal regardless of the case they were parsed from and
// can be used directly as map keys.
type StockID struct {
	Exchange string
	Code     string
}

// ParseStockID accepts both the prefix ("sh.600000") and the suffix
// ("600000.sh") notation, case-insensitively.
func ParseStockID(s string) (StockID, error) {
	m := stockIDPattern.FindStringSubmatch(s)
	if m == nil {
		return StockID{}, fmt.Errorf("%q is not a valid stock id", s)
	}
	exchange, code := m[1], m[2]
	if exchange == "" {
		code, exchange = m[3], m[4]
	}
	return StockID{Exchange: strings.ToLower(exchange), Code: code}, nil
}

// MustParseStockID is ParseStockID that panics on error, for tests and
// constants.
func MustParseStockID(s string) StockID {
	id, err := ParseStockID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id StockID) IsZero() bool { return id.Exchange == "" && id.Code == "" }

// String renders the canonical prefix form, e.g. "sh.600000".
func (id StockID) String() string { return id.Exchange + "." + id.Code }

// Suffix renders "600000.sh".
func (id StockID) Suffix() string { return id.Code + "." + id.Exchange }

// Tushare renders the form the tushare API expects, e.g. "600000.SH".
func (id StockID) Tushare() string { return id.Code + "." + strings.ToUpper(id.Exchange) }

// BaoStock renders the form the baostock bridge expects, identical to the
// canonical prefix form.
func (id StockID) BaoStock() string { return id.String() }

// Sina renders the concatenated form the sina quote API expects,
// e.g. "sh600000".
func (id StockID) Sina() string { return id.Exchange + id.Code }

func (id StockID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

func (id *StockID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseStockID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
