// Package tushare implements the trading calendar collaborator on top of the
// tushare HTTP API (trade_cal).
package tushare

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"gopkg.in/matryer/try.v1"
)

const (
	defaultHost    = "http://api.waditu.com"
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3

	dateParam = "20060102"
)

// Client queries the tushare API.
type Client struct {
	Host    string
	Token   string
	Timeout time.Duration
}

// NewClient returns a client using the given API token; an empty host falls
// back to the public endpoint.
func NewClient(host, token string) *Client {
	if host == "" {
		host = defaultHost
	}
	return &Client{Host: host, Token: token, Timeout: defaultTimeout}
}

type request struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  []string          `json:"fields,omitempty"`
}

// IsTradingDay reports whether the market trades on the given date.
// Transient transport failures are retried a bounded number of times; the
// caller treats a final error as "calendar unavailable" and keeps its
// previous status.
func (c *Client) IsTradingDay(date time.Time) (bool, error) {
	day := date.Format(dateParam)
	body, err := json.Marshal(request{
		APIName: "trade_cal",
		Token:   c.Token,
		Params:  map[string]string{"start_date": day, "end_date": day},
		Fields:  []string{"cal_date", "is_open"},
	})
	if err != nil {
		return false, err
	}

	var resp []byte
	err = try.Do(func(attempt int) (bool, error) {
		var err error
		resp, err = c.post(body)
		return attempt < maxAttempts, err
	})
	if err != nil {
		return false, errors.Wrap(err, "trade_cal request failed")
	}
	return parseTradeStatus(resp, day)
}

func (c *Client) post(body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.Host)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := fasthttp.DoTimeout(req, resp, c.Timeout); err != nil {
		return nil, err
	}
	if code := resp.StatusCode(); code >= fasthttp.StatusMultipleChoices {
		return nil, fmt.Errorf("tushare returned status code %v", code)
	}
	// the response buffer is reused after release
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

// parseTradeStatus digs the is_open flag for the requested date out of the
// trade_cal response without binding the whole envelope.
func parseTradeStatus(body []byte, day string) (bool, error) {
	if code, err := jsonparser.GetInt(body, "code"); err == nil && code != 0 {
		msg, _ := jsonparser.GetString(body, "msg")
		return false, fmt.Errorf("tushare error %d: %s", code, msg)
	}

	var open bool
	var found bool
	var itemErr error
	_, err := jsonparser.ArrayEach(body, func(item []byte, _ jsonparser.ValueType, _ int, _ error) {
		date, err := jsonparser.GetString(item, "[0]")
		if err != nil {
			itemErr = err
			return
		}
		if date != day {
			return
		}
		flag, err := jsonparser.GetInt(item, "[1]")
		if err != nil {
			itemErr = err
			return
		}
		found = true
		open = flag == 1
	}, "data", "items")
	if err != nil {
		return false, errors.Wrap(err, "unexpected trade_cal response shape")
	}
	if itemErr != nil {
		return false, errors.Wrap(itemErr, "unexpected trade_cal item shape")
	}
	if !found {
		return false, fmt.Errorf("trade_cal response has no entry for %s", day)
	}
	return open, nil
}
