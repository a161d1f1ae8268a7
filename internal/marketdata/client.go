// Package marketdata fetches currency listings and price charts from a
// CoinGecko-compatible HTTP API.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/coinshelf/internal/cache"
	"github.com/artpar/coinshelf/internal/currency"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the public CoinGecko v3 API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

const (
	defaultLimit      = 50
	maxLimit          = 250
	maxSearchResults  = 20
	defaultVsCurrency = "usd"
)

// ErrFetch matches every FetchError via errors.Is.
var ErrFetch = errors.New("market data fetch failed")

// FetchError reports a failed remote call.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Source is the part of the client the state store depends on.
type Source interface {
	FetchTopCurrencies(ctx context.Context, limit int) ([]currency.Record, error)
	FetchByID(ctx context.Context, id string) (*currency.Record, error)
}

// PricePoint is one sample of a price chart.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Client talks to the market data API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	vsCurrency string
	logger     *slog.Logger

	records *cache.Cache[[]currency.Record]
	charts  *cache.Cache[[]PricePoint]
	group   singleflight.Group
}

// Option is a function that configures the Client.
type Option func(*Client)

// NewClient creates a market data client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		vsCurrency: defaultVsCurrency,
		logger:     slog.Default(),
		records:    cache.New[[]currency.Record](5 * time.Minute),
		charts:     cache.New[[]PricePoint](5 * time.Minute),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithBaseURL points the client at another API root.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCacheTTL sets how long responses are reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.records = cache.New[[]currency.Record](ttl)
		c.charts = cache.New[[]PricePoint](ttl)
	}
}

// WithVsCurrency sets the quote currency for prices.
func WithVsCurrency(vs string) Option {
	return func(c *Client) {
		if vs != "" {
			c.vsCurrency = strings.ToLower(vs)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// FetchTopCurrencies returns the top coins by market cap.
func (c *Client) FetchTopCurrencies(ctx context.Context, limit int) ([]currency.Record, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	params := url.Values{}
	params.Set("vs_currency", c.vsCurrency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")

	return c.markets(ctx, "fetch top currencies", "top:"+strconv.Itoa(limit), params)
}

// FetchByID returns a single coin, or nil when the API does not know the id.
func (c *Client) FetchByID(ctx context.Context, id string) (*currency.Record, error) {
	if id == "" {
		return nil, &FetchError{Op: "fetch by id", Err: errors.New("empty id")}
	}

	params := url.Values{}
	params.Set("vs_currency", c.vsCurrency)
	params.Set("ids", id)
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")

	records, err := c.markets(ctx, "fetch "+id, "id:"+id, params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	r := records[0]
	return &r, nil
}

// Search looks coins up by name or symbol and returns their market data.
// An empty query returns the top 20 coins.
func (c *Client) Search(ctx context.Context, query string) ([]currency.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.FetchTopCurrencies(ctx, maxSearchResults)
	}

	key := "search:" + strings.ToLower(query)
	if records, ok := c.records.Get(key); ok {
		return records, nil
	}

	v, err := c.shared(ctx, "search", key, func(ctx context.Context) (any, error) {
		var resp struct {
			Coins []struct {
				ID string `json:"id"`
			} `json:"coins"`
		}
		if err := c.getJSON(ctx, "search", "/search", url.Values{"query": {query}}, &resp); err != nil {
			return nil, err
		}

		ids := make([]string, 0, maxSearchResults)
		for i, coin := range resp.Coins {
			if i == maxSearchResults {
				break
			}
			ids = append(ids, coin.ID)
		}
		if len(ids) == 0 {
			return []currency.Record{}, nil
		}

		params := url.Values{}
		params.Set("vs_currency", c.vsCurrency)
		params.Set("ids", strings.Join(ids, ","))
		params.Set("sparkline", "false")
		params.Set("price_change_percentage", "24h")

		var coins []marketCoin
		if err := c.getJSON(ctx, "search", "/coins/markets", params, &coins); err != nil {
			return nil, err
		}
		records := toRecords(coins)
		c.records.Set(key, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]currency.Record), nil
}

// PriceHistory returns the price chart of a coin over the last days.
func (c *Client) PriceHistory(ctx context.Context, id string, days int) ([]PricePoint, error) {
	if id == "" {
		return nil, &FetchError{Op: "price history", Err: errors.New("empty id")}
	}
	if days <= 0 {
		days = 7
	}

	key := fmt.Sprintf("chart:%s:%d", id, days)
	if points, ok := c.charts.Get(key); ok {
		return points, nil
	}

	op := "price history " + id
	v, err := c.shared(ctx, op, key, func(ctx context.Context) (any, error) {
		var resp struct {
			Prices [][2]float64 `json:"prices"`
		}
		params := url.Values{}
		params.Set("vs_currency", c.vsCurrency)
		params.Set("days", strconv.Itoa(days))

		if err := c.getJSON(ctx, op, "/coins/"+url.PathEscape(id)+"/market_chart", params, &resp); err != nil {
			return nil, err
		}

		points := make([]PricePoint, 0, len(resp.Prices))
		for _, p := range resp.Prices {
			points = append(points, PricePoint{
				Time:  time.UnixMilli(int64(p[0])).UTC(),
				Price: p[1],
			})
		}
		c.charts.Set(key, points)
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]PricePoint), nil
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.records.Flush()
	c.charts.Flush()
}

// CacheSize returns the number of cached responses.
func (c *Client) CacheSize() int {
	return c.records.Len() + c.charts.Len()
}

func (c *Client) markets(ctx context.Context, op, key string, params url.Values) ([]currency.Record, error) {
	if records, ok := c.records.Get(key); ok {
		c.logger.Debug("market data cache hit", "key", key)
		return records, nil
	}

	v, err := c.shared(ctx, op, key, func(ctx context.Context) (any, error) {
		var coins []marketCoin
		if err := c.getJSON(ctx, op, "/coins/markets", params, &coins); err != nil {
			return nil, err
		}
		records := toRecords(coins)
		c.records.Set(key, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]currency.Record), nil
}

// shared runs fn once for concurrent callers of the same key. fn gets a
// context that outlives any single caller, bounded by the client timeout, so
// one cancelled caller does not fail the others. Each caller still stops
// waiting when its own ctx is done.
func (c *Client) shared(ctx context.Context, op, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := c.detach(ctx)
		defer cancel()
		return fn(callCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, &FetchError{Op: op, Err: ctx.Err()}
	}
}

func (c *Client) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.httpClient.Timeout > 0 {
		return context.WithTimeout(ctx, c.httpClient.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) getJSON(ctx context.Context, op, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("market data request failed", "op", op, "error", err)
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("market data request",
		"op", op,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// marketCoin is one element of /coins/markets.
type marketCoin struct {
	ID                       string   `json:"id"`
	Name                     string   `json:"name"`
	Symbol                   string   `json:"symbol"`
	Image                    string   `json:"image"`
	CurrentPrice             *float64 `json:"current_price"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	MarketCap                *float64 `json:"market_cap"`
}

func toRecords(coins []marketCoin) []currency.Record {
	records := make([]currency.Record, 0, len(coins))
	for _, coin := range coins {
		records = append(records, currency.Record{
			ID:        coin.ID,
			Name:      coin.Name,
			Symbol:    strings.ToUpper(coin.Symbol),
			ImageURL:  coin.Image,
			Price:     coin.CurrentPrice,
			Change24h: coin.PriceChangePercentage24h,
			MarketCap: coin.MarketCap,
			List:      currency.ListCrypto,
		})
	}
	return records
}

var _ Source = (*Client)(nil)
