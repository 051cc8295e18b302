// Package binance provides a client for the Binance spot API
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
	"github.com/rpaiva/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://api.binance.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	recvWindowMS = 5000

	// The transfer-history endpoints cap a single query at 90 days and
	// the convert endpoint at 30; long ranges are walked in chunks.
	transferChunk = 89 * 24 * time.Hour
	convertChunk  = 30 * 24 * time.Hour
)

// Exchange-side terminal status codes.
const (
	depositStatusSuccess    = 1
	withdrawStatusCompleted = 6
)

// Client implements the ExchangeClient interface against the Binance
// spot API. Signed endpoints use HMAC-SHA256 over the query string with
// a request timestamp and recvWindow.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
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

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock sets the timestamp source for request signing
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Binance client
func NewClient(apiKey, apiSecret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an exchange API error
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Binance API error: %s (status: %d, code: %d, endpoint: %s)", e.Message, e.StatusCode, e.Code, e.Endpoint)
}

// sign returns the hex HMAC-SHA256 signature of the query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// get performs a rate-limited GET request. When signed is true, a
// timestamp, recvWindow, and signature are appended to the query.
func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.Itoa(recvWindowMS))
	}
	query := params.Encode()
	if signed {
		query += "&signature=" + c.sign(query)
	}

	reqURL := c.baseURL + path
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("path", path).Bool("signed", signed).Msg("Binance API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
		var wire struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &wire) == nil && wire.Msg != "" {
			apiErr.Code = wire.Code
			apiErr.Message = wire.Msg
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetAccountHoldings retrieves all non-zero balances joined with live
// 24h ticker prices. Assets without a USD-quoted ticker are priced at
// zero rather than dropped.
func (c *Client) GetAccountHoldings(ctx context.Context) ([]*models.HoldingBalance, error) {
	var account accountResponse
	if err := c.get(ctx, "/api/v3/account", nil, true, &account); err != nil {
		return nil, err
	}

	tickers, err := c.getTickers(ctx)
	if err != nil {
		return nil, err
	}

	holdings := make([]*models.HoldingBalance, 0, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			continue
		}
		if free.Add(locked).IsZero() {
			continue
		}

		h := &models.HoldingBalance{
			AssetSymbol: b.Asset,
			Free:        free,
			Locked:      locked,
		}
		if t, ok := tickers[b.Asset+"USDT"]; ok {
			h.Price = t.price
			h.PriceChangePct = t.changePct
		} else if isStablecoin(b.Asset) {
			h.Price = decimal.NewFromInt(1)
		}
		holdings = append(holdings, h)
	}

	return holdings, nil
}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type tickerEntry struct {
	price     decimal.Decimal
	changePct float64
}

// getTickers retrieves all 24h tickers keyed by pair symbol.
func (c *Client) getTickers(ctx context.Context) (map[string]tickerEntry, error) {
	var resp []struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := c.get(ctx, "/api/v3/ticker/24hr", nil, false, &resp); err != nil {
		return nil, err
	}

	tickers := make(map[string]tickerEntry, len(resp))
	for _, t := range resp {
		price, err := decimal.NewFromString(t.LastPrice)
		if err != nil {
			continue
		}
		changePct, _ := strconv.ParseFloat(t.PriceChangePercent, 64)
		tickers[t.Symbol] = tickerEntry{price: price, changePct: changePct}
	}
	return tickers, nil
}

func isStablecoin(asset string) bool {
	switch asset {
	case "USDT", "USDC", "BUSD", "DAI", "TUSD", "USDP":
		return true
	}
	return false
}

// GetMyTrades retrieves spot trade fills for a trading pair.
func (c *Client) GetMyTrades(ctx context.Context, pairSymbol string) ([]*models.TradeFill, error) {
	params := url.Values{}
	params.Set("symbol", pairSymbol)
	params.Set("limit", "1000")

	var resp []struct {
		ID       int64  `json:"id"`
		Symbol   string `json:"symbol"`
		Price    string `json:"price"`
		Qty      string `json:"qty"`
		QuoteQty string `json:"quoteQty"`
		Time     int64  `json:"time"`
		IsBuyer  bool   `json:"isBuyer"`
	}
	if err := c.get(ctx, "/api/v3/myTrades", params, true, &resp); err != nil {
		return nil, err
	}

	fills := make([]*models.TradeFill, 0, len(resp))
	for _, t := range resp {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, fmt.Errorf("malformed trade price %q: %w", t.Price, err)
		}
		qty, err := decimal.NewFromString(t.Qty)
		if err != nil {
			return nil, fmt.Errorf("malformed trade qty %q: %w", t.Qty, err)
		}
		quoteQty, err := decimal.NewFromString(t.QuoteQty)
		if err != nil {
			return nil, fmt.Errorf("malformed trade quoteQty %q: %w", t.QuoteQty, err)
		}

		fills = append(fills, &models.TradeFill{
			PairSymbol:    t.Symbol,
			Price:         price,
			Quantity:      qty,
			QuoteQuantity: quoteQty,
			IsBuyer:       t.IsBuyer,
			Time:          time.UnixMilli(t.Time).UTC(),
			SourceID:      fmt.Sprintf("trade_%s_%d", t.Symbol, t.ID),
		})
	}

	return fills, nil
}

// GetDepositHistory retrieves successful deposits for an asset, walking
// the range in 90-day chunks as the endpoint requires.
func (c *Client) GetDepositHistory(ctx context.Context, asset string, from, to time.Time) ([]*models.TransferRecord, error) {
	var records []*models.TransferRecord

	err := c.walkChunks(from, to, transferChunk, func(start, end time.Time) error {
		params := url.Values{}
		params.Set("coin", asset)
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))

		var resp []struct {
			Amount     string `json:"amount"`
			Coin       string `json:"coin"`
			Status     int    `json:"status"`
			TxID       string `json:"txId"`
			InsertTime int64  `json:"insertTime"`
		}
		if err := c.get(ctx, "/sapi/v1/capital/deposit/hisrec", params, true, &resp); err != nil {
			return err
		}

		for _, d := range resp {
			amount, err := decimal.NewFromString(d.Amount)
			if err != nil {
				continue
			}
			records = append(records, &models.TransferRecord{
				AssetSymbol: d.Coin,
				Direction:   models.TransferIn,
				Amount:      amount,
				Status:      depositStatus(d.Status),
				Time:        time.UnixMilli(d.InsertTime).UTC(),
				SourceID:    "deposit_" + d.TxID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetWithdrawHistory retrieves withdrawals for an asset in 90-day chunks.
func (c *Client) GetWithdrawHistory(ctx context.Context, asset string, from, to time.Time) ([]*models.TransferRecord, error) {
	var records []*models.TransferRecord

	err := c.walkChunks(from, to, transferChunk, func(start, end time.Time) error {
		params := url.Values{}
		params.Set("coin", asset)
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))

		var resp []struct {
			ID        string `json:"id"`
			Amount    string `json:"amount"`
			Coin      string `json:"coin"`
			Status    int    `json:"status"`
			ApplyTime string `json:"applyTime"` // "2006-01-02 15:04:05" in UTC
		}
		if err := c.get(ctx, "/sapi/v1/capital/withdraw/history", params, true, &resp); err != nil {
			return err
		}

		for _, w := range resp {
			amount, err := decimal.NewFromString(w.Amount)
			if err != nil {
				continue
			}
			applied, err := time.ParseInLocation("2006-01-02 15:04:05", w.ApplyTime, time.UTC)
			if err != nil {
				continue
			}
			records = append(records, &models.TransferRecord{
				AssetSymbol: w.Coin,
				Direction:   models.TransferOut,
				Amount:      amount,
				Status:      withdrawStatus(w.Status),
				Time:        applied,
				SourceID:    "withdraw_" + w.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetConvertHistory retrieves direct conversions in 30-day chunks.
func (c *Client) GetConvertHistory(ctx context.Context, from, to time.Time) ([]*models.ConversionRecord, error) {
	var records []*models.ConversionRecord

	err := c.walkChunks(from, to, convertChunk, func(start, end time.Time) error {
		params := url.Values{}
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
		params.Set("limit", "1000")

		var resp struct {
			List []struct {
				OrderID    int64  `json:"orderId"`
				FromAsset  string `json:"fromAsset"`
				FromAmount string `json:"fromAmount"`
				ToAsset    string `json:"toAsset"`
				ToAmount   string `json:"toAmount"`
				CreateTime int64  `json:"createTime"`
			} `json:"list"`
		}
		if err := c.get(ctx, "/sapi/v1/convert/tradeFlow", params, true, &resp); err != nil {
			return err
		}

		for _, t := range resp.List {
			fromAmount, err := decimal.NewFromString(t.FromAmount)
			if err != nil {
				continue
			}
			toAmount, err := decimal.NewFromString(t.ToAmount)
			if err != nil {
				continue
			}
			records = append(records, &models.ConversionRecord{
				FromAsset:  t.FromAsset,
				FromAmount: fromAmount,
				ToAsset:    t.ToAsset,
				ToAmount:   toAmount,
				Time:       time.UnixMilli(t.CreateTime).UTC(),
				SourceID:   fmt.Sprintf("convert_%d", t.OrderID),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// walkChunks invokes fn over [from, to) in windows no larger than chunk.
func (c *Client) walkChunks(from, to time.Time, chunk time.Duration, fn func(start, end time.Time) error) error {
	for start := from; start.Before(to); start = start.Add(chunk) {
		end := start.Add(chunk)
		if end.After(to) {
			end = to
		}
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

func depositStatus(code int) models.TransferStatus {
	switch code {
	case depositStatusSuccess:
		return models.TransferCompleted
	case 0:
		return models.TransferPending
	default:
		return models.TransferFailed
	}
}

func withdrawStatus(code int) models.TransferStatus {
	switch code {
	case withdrawStatusCompleted:
		return models.TransferCompleted
	case 0, 2, 4: // email sent, awaiting approval, processing
		return models.TransferPending
	default:
		return models.TransferFailed
	}
}

// Ensure Client implements ExchangeClient
var _ interfaces.ExchangeClient = (*Client)(nil)
