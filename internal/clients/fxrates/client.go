// Package fxrates provides spot currency conversion with a TTL cache
package fxrates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
)

const (
	DefaultBaseURL  = "https://api.exchangerate-api.com/v4"
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 5 * time.Minute
)

// fallbackRates are approximate rates used when the rate service is
// unreachable. Best-effort by contract: a stale approximation beats
// failing an entire valuation batch.
var fallbackRates = map[string]map[string]float64{
	"USD": {"BRL": 5.50, "EUR": 0.85, "GBP": 0.73},
	"BRL": {"USD": 0.18, "EUR": 0.15, "GBP": 0.13},
	"EUR": {"USD": 1.18, "BRL": 6.50, "GBP": 0.86},
}

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Client implements the RatesClient interface with a mutex-guarded TTL
// cache. Rates per base currency are fetched single-flight: the fetch
// runs under the cache mutex, so concurrent callers for the same base
// wait for the in-flight fetch and read its result from the cache.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	ttl        time.Duration
	now        func() time.Time

	mu    sync.Mutex
	rates map[string]cachedRate // key: FROM_TO
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCacheTTL sets how long a fetched rate stays valid
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock sets the time source for cache expiry
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new FX rates client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: common.NewSilentLogger(),
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		rates:  make(map[string]cachedRate),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Convert converts amount from one currency to another at the cached or
// freshly fetched spot rate, falling back to the static table when the
// rate service is unavailable.
func (c *Client) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	rate, err := c.getRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	return amount.Mul(rate), nil
}

func (c *Client) getRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := from + "_" + to

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.rates[key]; ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.rate, nil
	}

	rate, err := c.fetchRate(ctx, from, to)
	if err != nil {
		c.logger.Warn().Err(err).Str("from", from).Str("to", to).Msg("Rate fetch failed, using fallback")
		fallback, ok := fallbackRates[from][to]
		if !ok {
			return decimal.Zero, fmt.Errorf("no rate available for %s->%s: %w", from, to, err)
		}
		return decimal.NewFromFloat(fallback), nil
	}

	c.rates[key] = cachedRate{rate: rate, fetchedAt: c.now()}

	return rate, nil
}

// fetchRate retrieves the current rate from the external service.
func (c *Client) fetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest/"+from, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decimal.Zero, fmt.Errorf("rate service returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}

	rate, ok := payload.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate for %s not present in response", to)
	}

	return decimal.NewFromFloat(rate), nil
}

// Ensure Client implements RatesClient
var _ interfaces.RatesClient = (*Client)(nil)
