// Package market fetches quote and index data from a Yahoo-chart-style
// HTTP API.
package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// validPeriods are the history ranges the chart endpoint accepts here.
var validPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true, "1y": true,
}

// Indices tracked by Overview, in output order.
var indices = []struct {
	Symbol string
	Name   string
}{
	{"^GSPC", "S&P 500"},
	{"^DJI", "Dow Jones"},
	{"^IXIC", "NASDAQ"},
}

// Quote is a point-in-time view of one symbol.
type Quote struct {
	Symbol             string             `json:"symbol"`
	CompanyName        string             `json:"company_name"`
	CurrentPrice       float64            `json:"current_price"`
	PriceChange        float64            `json:"price_change"`
	PriceChangePercent float64            `json:"price_change_percent"`
	Volume             int64              `json:"volume"`
	FiftyTwoWeekHigh   float64            `json:"52_week_high,omitempty"`
	FiftyTwoWeekLow    float64            `json:"52_week_low,omitempty"`
	RecentCloses       map[string]float64 `json:"recent_prices"`
}

// IndexQuote is a snapshot of one market index.
type IndexQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Current       float64 `json:"current"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// Client fetches chart data over HTTP.
type Client struct {
	httpc   *http.Client
	baseURL string
}

// NewClient returns a client against the public chart endpoint.
func NewClient() *Client {
	return &Client{
		httpc:   &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
	}
}

// NewClientWithBase returns a client against a custom endpoint, used in tests.
func NewClientWithBase(httpc *http.Client, baseURL string) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpc: httpc, baseURL: baseURL}
}

// Quote fetches history for symbol over period ("1d", "5d", "1mo", "3mo",
// "6mo", "1y") and derives change metrics from the close series.
func (c *Client) Quote(ctx context.Context, symbol, period string) (*Quote, error) {
	if period == "" {
		period = "1mo"
	}
	if !validPeriods[period] {
		return nil, fmt.Errorf("invalid period %q", period)
	}
	body, err := c.fetchChart(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	return ParseQuote(symbol, body)
}

// Overview fetches a snapshot of the major market indices.
func (c *Client) Overview(ctx context.Context) ([]IndexQuote, error) {
	out := make([]IndexQuote, 0, len(indices))
	for _, idx := range indices {
		body, err := c.fetchChart(ctx, idx.Symbol, "5d")
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", idx.Name, err)
		}
		q, err := ParseQuote(idx.Symbol, body)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", idx.Name, err)
		}
		out = append(out, IndexQuote{
			Symbol:        idx.Symbol,
			Name:          idx.Name,
			Current:       q.CurrentPrice,
			Change:        q.PriceChange,
			ChangePercent: q.PriceChangePercent,
		})
	}
	return out, nil
}

func (c *Client) fetchChart(ctx context.Context, symbol, period string) ([]byte, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(period))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "tradeloop/1.0")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request for %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chart response for %s: %w", symbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart request for %s: status %d", symbol, resp.StatusCode)
	}
	return body, nil
}

// ParseQuote extracts a Quote from a raw chart API response.
func ParseQuote(symbol string, body []byte) (*Quote, error) {
	doc := string(body)
	if desc := gjson.Get(doc, "chart.error.description"); desc.Exists() && desc.String() != "" {
		return nil, fmt.Errorf("chart API error for %s: %s", symbol, desc.String())
	}
	result := gjson.Get(doc, "chart.result.0")
	if !result.Exists() {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	closes := result.Get("indicators.quote.0.close").Array()
	timestamps := result.Get("timestamp").Array()
	if len(closes) == 0 {
		return nil, fmt.Errorf("empty close series for %s", symbol)
	}

	q := &Quote{
		Symbol:       symbol,
		CompanyName:  symbol,
		RecentCloses: make(map[string]float64),
	}
	if name := result.Get("meta.shortName"); name.Exists() && name.String() != "" {
		q.CompanyName = name.String()
	}
	q.FiftyTwoWeekHigh = result.Get("meta.fiftyTwoWeekHigh").Float()
	q.FiftyTwoWeekLow = result.Get("meta.fiftyTwoWeekLow").Float()

	q.CurrentPrice = closes[len(closes)-1].Float()
	if len(closes) > 1 {
		prev := closes[len(closes)-2].Float()
		q.PriceChange = q.CurrentPrice - prev
		if prev != 0 {
			q.PriceChangePercent = q.PriceChange / prev * 100
		}
	}
	if volumes := result.Get("indicators.quote.0.volume").Array(); len(volumes) > 0 {
		q.Volume = volumes[len(volumes)-1].Int()
	}

	// Last five closes keyed by date, matching the timestamp series.
	start := len(closes) - 5
	if start < 0 {
		start = 0
	}
	for i := start; i < len(closes); i++ {
		key := fmt.Sprintf("t%d", i)
		if i < len(timestamps) {
			key = time.Unix(timestamps[i].Int(), 0).UTC().Format("2006-01-02")
		}
		q.RecentCloses[key] = closes[i].Float()
	}
	return q, nil
}
