// Package pluggy provides a client for the Pluggy open-banking API
package pluggy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
	"github.com/rpaiva/folio/internal/models"
)

const (
	DefaultBaseURL = "https://api.pluggy.ai"
	DefaultTimeout = 30 * time.Second

	// Tokens are valid for two hours; refresh a little early so a token
	// never expires mid-request.
	tokenSafetyMargin = 5 * time.Minute
	fallbackTokenTTL  = 2 * time.Hour
)

// Client implements the BankingClient interface. Authentication trades
// client credentials for a short-lived JWT API key, cached and refreshed
// single-flight: the refresh happens under the token mutex, so concurrent
// callers block on the one in-flight refresh and reuse its result.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *common.Logger
	now          func() time.Time

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
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

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock sets the time source used for token expiry checks
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Pluggy client
func NewClient(clientID, clientSecret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: common.NewSilentLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Pluggy API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Authenticate returns a valid API token, refreshing it when missing or
// near expiry. Total failure here is fatal for any batch that depends on
// banking data.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-tokenSafetyMargin)) {
		return c.token, nil
	}

	c.logger.Debug().Msg("Requesting new Pluggy API key")

	payload, err := json.Marshal(map[string]string{
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", models.ErrAuthenticationFailed, resp.StatusCode, string(body))
	}

	var auth struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("%w: decode auth response: %v", models.ErrAuthenticationFailed, err)
	}
	if auth.APIKey == "" {
		return "", fmt.Errorf("%w: empty api key in auth response", models.ErrAuthenticationFailed)
	}

	c.token = auth.APIKey
	c.tokenExpiry = c.tokenExpiryFrom(auth.APIKey)

	c.logger.Debug().Time("expiry", c.tokenExpiry).Msg("Pluggy API key refreshed")

	return c.token, nil
}

// tokenExpiryFrom reads the exp claim of the JWT API key. The token is
// not verified — only its expiry is of interest; the API rejects forged
// tokens on its own.
func (c *Client) tokenExpiryFrom(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return c.now().Add(fallbackTokenTTL)
}

// get performs an authenticated GET request
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-API-KEY", token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("path", path).Msg("Pluggy API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetInvestments retrieves investment positions for a connected item
func (c *Client) GetInvestments(ctx context.Context, itemID string) ([]*models.BankInvestment, error) {
	var resp investmentsResponse
	if err := c.get(ctx, "/investments?itemId="+itemID, &resp); err != nil {
		return nil, err
	}

	investments := make([]*models.BankInvestment, len(resp.Results))
	for i, inv := range resp.Results {
		investments[i] = &models.BankInvestment{
			ID:           inv.ID,
			ItemID:       itemID,
			Name:         inv.Name,
			Code:         inv.Code,
			Type:         inv.Type,
			Subtype:      inv.Subtype,
			Balance:      decimal.NewFromFloat(inv.Balance),
			Quantity:     decimal.NewFromFloat(inv.Quantity),
			UnitValue:    decimal.NewFromFloat(inv.Value),
			CurrencyCode: inv.CurrencyCode,
			Date:         inv.Date,
		}
	}

	return investments, nil
}

type investmentsResponse struct {
	Results []struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Code         string    `json:"code"`
		Type         string    `json:"type"`
		Subtype      string    `json:"subtype"`
		Balance      float64   `json:"balance"`
		Quantity     float64   `json:"quantity"`
		Value        float64   `json:"value"`
		CurrencyCode string    `json:"currencyCode"`
		Date         time.Time `json:"date"`
	} `json:"results"`
}

// GetInvestmentTransactions retrieves the transaction history of one investment
func (c *Client) GetInvestmentTransactions(ctx context.Context, investmentID string) ([]*models.BankTransaction, error) {
	var resp transactionsResponse
	if err := c.get(ctx, "/investments/"+investmentID+"/transactions", &resp); err != nil {
		return nil, err
	}

	transactions := make([]*models.BankTransaction, len(resp.Results))
	for i, t := range resp.Results {
		transactions[i] = &models.BankTransaction{
			ID:           t.ID,
			InvestmentID: investmentID,
			Type:         t.Type,
			Quantity:     decimal.NewFromFloat(t.Quantity),
			UnitValue:    decimal.NewFromFloat(t.Value),
			Amount:       decimal.NewFromFloat(t.Amount),
			Date:         t.Date,
		}
	}

	return transactions, nil
}

type transactionsResponse struct {
	Results []struct {
		ID       string    `json:"id"`
		Type     string    `json:"type"`
		Quantity float64   `json:"quantity"`
		Value    float64   `json:"value"`
		Amount   float64   `json:"amount"`
		Date     time.Time `json:"date"`
	} `json:"results"`
}

// Ensure Client implements BankingClient
var _ interfaces.BankingClient = (*Client)(nil)
