// Package sina fetches current quotes for a batch of stocks from the sina
// quote endpoint.  The endpoint returns one javascript assignment per stock;
// rows that fail to parse are skipped so one garbled stock cannot poison a
// whole polling cycle.
package sina

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/quotepulse/quotepulse/models"
	"github.com/quotepulse/quotepulse/utils/log"
)

const (
	defaultBaseURL = "http://hq.sinajs.cn"
	defaultTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.5060.53 Safari/537.36"
	referer   = "https://finance.sina.com.cn"
)

// Client is the live batch quote fetcher.
type Client struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient returns a client for the given base URL, or the public sina
// endpoint when empty.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{BaseURL: baseURL, Timeout: defaultTimeout}
}

// FetchCurrentQuotes requests the current quote for every id in one batch
// call.  The result is keyed by id because skipped rows make positional
// mapping unreliable; ids missing from the result simply had no usable row.
func (c *Client) FetchCurrentQuotes(ids []models.StockID) (map[models.StockID]*models.Quote, error) {
	if len(ids) == 0 {
		return map[models.StockID]*models.Quote{}, nil
	}

	list := make([]string, len(ids))
	for i, id := range ids {
		list[i] = id.Sina()
	}
	uri := fmt.Sprintf("%s/list=%s", c.BaseURL, strings.Join(list, ","))

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.Set(fasthttp.HeaderUserAgent, userAgent)
	req.Header.Set(fasthttp.HeaderReferer, referer)

	if err := fasthttp.DoTimeout(req, resp, c.Timeout); err != nil {
		return nil, errors.Wrap(err, "failed to fetch quotes from sina")
	}
	if code := resp.StatusCode(); code >= fasthttp.StatusMultipleChoices {
		return nil, fmt.Errorf("sina returned status code %v", code)
	}

	return parseQuotes(resp.Body()), nil
}

// parseQuotes splits the response into rows and parses each independently,
// dropping the ones that do not look like a quote.
func parseQuotes(body []byte) map[models.StockID]*models.Quote {
	result := map[models.StockID]*models.Quote{}
	for _, row := range strings.FieldsFunc(string(body), func(r rune) bool { return r == '\n' || r == '\r' }) {
		if strings.TrimSpace(row) == "" {
			continue
		}
		id, quote, err := parseRow(row)
		if err != nil {
			log.Warn("skipping unparsable sina row: %v", err)
			continue
		}
		result[id] = quote
	}
	return result
}
