package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpaiva/folio/internal/models"
)

const (
	testAPIKey    = "test-api-key"
	testAPISecret = "test-api-secret"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(serverURL string) *Client {
	return NewClient(testAPIKey, testAPISecret,
		WithBaseURL(serverURL),
		WithRateLimit(1000),
		WithClock(func() time.Time { return testNow }),
	)
}

// verifySignature recomputes the HMAC over the query string minus the
// signature parameter and compares.
func verifySignature(t *testing.T, r *http.Request) {
	t.Helper()

	rawQuery := r.URL.RawQuery
	idx := len(rawQuery) - len("&signature=") - 64
	require.Greater(t, idx, 0, "query too short to carry a signature")
	payload := rawQuery[:idx]
	signature := r.URL.Query().Get("signature")

	mac := hmac.New(sha256.New, []byte(testAPISecret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, expected, signature, "signature mismatch")
}

func TestGetMyTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/myTrades", r.URL.Path)
		assert.Equal(t, testAPIKey, r.Header.Get("X-MBX-APIKEY"))

		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, strconv.FormatInt(testNow.UnixMilli(), 10), q.Get("timestamp"))
		assert.Equal(t, "5000", q.Get("recvWindow"))
		verifySignature(t, r)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 42, "symbol": "BTCUSDT", "price": "50000.00", "qty": "0.50000000", "quoteQty": "25000.00", "time": 1740830400000, "isBuyer": true}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	fills, err := client.GetMyTrades(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, fills, 1)

	fill := fills[0]
	assert.Equal(t, "BTCUSDT", fill.PairSymbol)
	assert.Equal(t, "trade_BTCUSDT_42", fill.SourceID)
	assert.True(t, fill.IsBuyer)
	assert.True(t, fill.Quantity.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, fill.QuoteQuantity.Equal(decimal.RequireFromString("25000")))
	assert.Equal(t, time.UnixMilli(1740830400000).UTC(), fill.Time)
}

func TestGetAccountHoldings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v3/account":
			verifySignature(t, r)
			w.Write([]byte(`{"balances": [
				{"asset": "BTC", "free": "0.80000000", "locked": "0.20000000"},
				{"asset": "USDT", "free": "1500.00", "locked": "0.00"},
				{"asset": "DUST", "free": "0.00000000", "locked": "0.00000000"}
			]}`))
		case "/api/v3/ticker/24hr":
			w.Write([]byte(`[
				{"symbol": "BTCUSDT", "lastPrice": "50000.00", "priceChangePercent": "2.5"}
			]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	holdings, err := client.GetAccountHoldings(context.Background())
	require.NoError(t, err)
	require.Len(t, holdings, 2, "zero balances must be dropped")

	byAsset := map[string]*models.HoldingBalance{}
	for _, h := range holdings {
		byAsset[h.AssetSymbol] = h
	}

	btc := byAsset["BTC"]
	require.NotNil(t, btc)
	assert.True(t, btc.Total().Equal(decimal.RequireFromString("1")))
	assert.True(t, btc.Price.Equal(decimal.RequireFromString("50000")))
	assert.Equal(t, 2.5, btc.PriceChangePct)

	// Stablecoins without their own ticker are pegged at 1.
	usdt := byAsset["USDT"]
	require.NotNil(t, usdt)
	assert.True(t, usdt.Price.Equal(decimal.NewFromInt(1)))
}

func TestGetDepositHistory_StatusMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sapi/v1/capital/deposit/hisrec", r.URL.Path)
		assert.Equal(t, "BTC", r.URL.Query().Get("coin"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"amount": "1.0", "coin": "BTC", "status": 1, "txId": "aaa", "insertTime": 1740830400000},
			{"amount": "2.0", "coin": "BTC", "status": 0, "txId": "bbb", "insertTime": 1740830400000}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	from := testNow.Add(-24 * time.Hour)
	records, err := client.GetDepositHistory(context.Background(), "BTC", from, testNow)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, models.TransferCompleted, records[0].Status)
	assert.Equal(t, "deposit_aaa", records[0].SourceID)
	assert.Equal(t, models.TransferIn, records[0].Direction)
	assert.Equal(t, models.TransferPending, records[1].Status)
}

func TestGetWithdrawHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sapi/v1/capital/withdraw/history", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "w1", "amount": "0.5", "coin": "BTC", "status": 6, "applyTime": "2025-03-01 10:30:00"},
			{"id": "w2", "amount": "0.1", "coin": "BTC", "status": 4, "applyTime": "2025-03-01 11:00:00"},
			{"id": "w3", "amount": "0.2", "coin": "BTC", "status": 5, "applyTime": "2025-03-01 11:30:00"}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	from := testNow.Add(-24 * time.Hour)
	records, err := client.GetWithdrawHistory(context.Background(), "BTC", from, testNow)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, models.TransferCompleted, records[0].Status)
	assert.Equal(t, "withdraw_w1", records[0].SourceID)
	assert.Equal(t, models.TransferOut, records[0].Direction)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC), records[0].Time)
	assert.Equal(t, models.TransferPending, records[1].Status)
	assert.Equal(t, models.TransferFailed, records[2].Status)
}

func TestGetConvertHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sapi/v1/convert/tradeFlow", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"list": [
			{"orderId": 7, "fromAsset": "USDT", "fromAmount": "1000.0", "toAsset": "BTC", "toAmount": "0.02", "createTime": 1740830400000}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	from := testNow.Add(-24 * time.Hour)
	records, err := client.GetConvertHistory(context.Background(), from, testNow)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "convert_7", rec.SourceID)
	assert.Equal(t, "USDT", rec.FromAsset)
	assert.Equal(t, "BTC", rec.ToAsset)
	assert.True(t, rec.ToAmount.Equal(decimal.RequireFromString("0.02")))
}

func TestTransferHistory_WalksLongRangeInChunks(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		start, err := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		require.NoError(t, err)
		end, err := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)
		require.NoError(t, err)
		assert.LessOrEqual(t, end-start, transferChunk.Milliseconds(), "chunk exceeds endpoint limit")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	from := testNow.Add(-200 * 24 * time.Hour)
	_, err := client.GetDepositHistory(context.Background(), "BTC", from, testNow)
	require.NoError(t, err)

	// 200 days at 89 days per chunk is three windows.
	assert.Equal(t, int32(3), requests.Load())
}

func TestAPIErrorParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -1121, "msg": "Invalid symbol."}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetMyTrades(context.Background(), "NOPEUSDT")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, -1121, apiErr.Code)
	assert.Equal(t, "Invalid symbol.", apiErr.Message)
	assert.Equal(t, "/api/v3/myTrades", apiErr.Endpoint)
}

func TestSign(t *testing.T) {
	client := NewClient("key", "secret")

	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("timestamp", "1740830400000")
	query := params.Encode()

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(query))
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, client.sign(query))
}
