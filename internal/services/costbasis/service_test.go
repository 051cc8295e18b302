package costbasis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/models"
)

// mockExchange serves canned history keyed by pair/asset, with optional
// per-source failures.
type mockExchange struct {
	trades      map[string][]*models.TradeFill
	deposits    []*models.TransferRecord
	withdrawals []*models.TransferRecord
	conversions []*models.ConversionRecord

	tradesErr      error
	depositsErr    error
	withdrawalsErr error
	conversionsErr error
}

func (m *mockExchange) GetAccountHoldings(_ context.Context) ([]*models.HoldingBalance, error) {
	return nil, nil
}

func (m *mockExchange) GetMyTrades(_ context.Context, pairSymbol string) ([]*models.TradeFill, error) {
	if m.tradesErr != nil {
		return nil, m.tradesErr
	}
	fills, ok := m.trades[pairSymbol]
	if !ok {
		return nil, errors.New("invalid symbol")
	}
	return fills, nil
}

func (m *mockExchange) GetDepositHistory(_ context.Context, _ string, _, _ time.Time) ([]*models.TransferRecord, error) {
	if m.depositsErr != nil {
		return nil, m.depositsErr
	}
	return m.deposits, nil
}

func (m *mockExchange) GetWithdrawHistory(_ context.Context, _ string, _, _ time.Time) ([]*models.TransferRecord, error) {
	if m.withdrawalsErr != nil {
		return nil, m.withdrawalsErr
	}
	return m.withdrawals, nil
}

func (m *mockExchange) GetConvertHistory(_ context.Context, _, _ time.Time) ([]*models.ConversionRecord, error) {
	if m.conversionsErr != nil {
		return nil, m.conversionsErr
	}
	return m.conversions, nil
}

func testConfig() common.CostBasisConfig {
	return common.CostBasisConfig{
		ReferenceCurrency: "USD",
		QuoteAssets:       []string{"USDT", "USDC", "BUSD", "ETH", "BNB"},
		LookbackDays:      90,
	}
}

func newTestService(exchange *mockExchange) *Service {
	svc := NewService(exchange, nil, testConfig(), common.NewSilentLogger())
	return svc.WithClock(func() time.Time { return t0.Add(24 * time.Hour) })
}

func fill(pair string, qty, quote string, buyer bool, at time.Time, id string) *models.TradeFill {
	return &models.TradeFill{
		PairSymbol:    pair,
		Quantity:      d(qty),
		QuoteQuantity: d(quote),
		IsBuyer:       buyer,
		Time:          at,
		SourceID:      id,
	}
}

func TestComputeCostBasis_CombinesAllSources(t *testing.T) {
	exchange := &mockExchange{
		trades: map[string][]*models.TradeFill{
			"BTCUSDT": {
				fill("BTCUSDT", "1", "50000", true, t0, "trade_BTCUSDT_1"),
			},
		},
		deposits: []*models.TransferRecord{
			{
				AssetSymbol: "BTC",
				Amount:      d("0.5"),
				Direction:   models.TransferIn,
				Status:      models.TransferCompleted,
				Time:        t0.Add(time.Hour),
				SourceID:    "deposit_tx1",
			},
		},
		conversions: []*models.ConversionRecord{
			{
				FromAsset:  "USDT",
				FromAmount: d("10000"),
				ToAsset:    "BTC",
				ToAmount:   d("0.2"),
				Time:       t0.Add(2 * time.Hour),
				SourceID:   "convert_1",
			},
		},
	}
	svc := newTestService(exchange)

	result, err := svc.ComputeCostBasis(context.Background(), "BTC", decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1 BTC @ 50000, 0.5 BTC deposited at zero cost, 0.2 BTC for 10000.
	decimalEqual(t, result.TotalQuantityHeld, d("1.7"), "quantity")
	decimalEqual(t, result.TotalInvested, d("60000"), "invested")
	if result.TransactionCount != 3 {
		t.Errorf("transaction count = %d, want 3", result.TransactionCount)
	}
}

func TestComputeCostBasis_EmptyHistoryReportsUnknown(t *testing.T) {
	exchange := &mockExchange{trades: map[string][]*models.TradeFill{}}
	svc := newTestService(exchange)

	result, err := svc.ComputeCostBasis(context.Background(), "BTC", d("1.5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decimalEqual(t, result.TotalQuantityHeld, d("1.5"), "quantity")
	decimalEqual(t, result.TotalInvested, decimal.Zero, "invested")
	decimalEqual(t, result.AveragePrice, decimal.Zero, "average price")
	if result.TransactionCount != 0 {
		t.Errorf("transaction count = %d, want 0", result.TransactionCount)
	}
	if result.Known() {
		t.Error("result with no history must not report a known basis")
	}
}

func TestComputeCostBasis_FailedSourceDegradesGracefully(t *testing.T) {
	// Trades are down entirely; the deposit source still contributes.
	exchange := &mockExchange{
		tradesErr: errors.New("exchange maintenance"),
		deposits: []*models.TransferRecord{
			{
				AssetSymbol: "BTC",
				Amount:      d("2"),
				Direction:   models.TransferIn,
				Status:      models.TransferCompleted,
				Time:        t0,
				SourceID:    "deposit_tx1",
			},
		},
	}
	svc := newTestService(exchange)

	result, err := svc.ComputeCostBasis(context.Background(), "BTC", decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decimalEqual(t, result.TotalQuantityHeld, d("2"), "quantity")
	if result.TransactionCount != 1 {
		t.Errorf("transaction count = %d, want 1", result.TransactionCount)
	}
}

func TestAggregator_DedupesBySourceID(t *testing.T) {
	// The same fill appearing twice in source data must count once.
	shared := fill("BTCUSDT", "1", "50000", true, t0, "trade_BTCUSDT_1")
	exchange := &mockExchange{
		trades: map[string][]*models.TradeFill{
			"BTCUSDT": {shared, shared},
		},
	}
	svc := newTestService(exchange)

	result, err := svc.ComputeCostBasis(context.Background(), "BTC", decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TransactionCount != 1 {
		t.Errorf("transaction count = %d, want 1 after dedup", result.TransactionCount)
	}
	decimalEqual(t, result.TotalQuantityHeld, d("1"), "quantity")
	decimalEqual(t, result.TotalInvested, d("50000"), "invested")
}

func TestAggregator_OrdersByOccurredAt(t *testing.T) {
	normalizer := NewNormalizer(testQuoteAssets, "USD", nil, common.NewSilentLogger())
	exchange := &mockExchange{
		trades: map[string][]*models.TradeFill{
			// Out of order on purpose; the sell only makes sense after the buy.
			"BTCUSDT": {
				fill("BTCUSDT", "0.5", "30000", false, t0.Add(2*time.Hour), "trade_BTCUSDT_2"),
				fill("BTCUSDT", "1", "50000", true, t0, "trade_BTCUSDT_1"),
			},
		},
	}
	agg := NewAggregator(exchange, normalizer, testQuoteAssets, 90*24*time.Hour, common.NewSilentLogger())
	agg.now = func() time.Time { return t0.Add(24 * time.Hour) }

	txs := agg.Collect(context.Background(), "BTC")
	if len(txs) != 2 {
		t.Fatalf("collected %d transactions, want 2", len(txs))
	}
	if !txs[0].OccurredAt.Before(txs[1].OccurredAt) {
		t.Errorf("transactions not sorted: %v then %v", txs[0].OccurredAt, txs[1].OccurredAt)
	}
	if txs[0].Kind != models.KindBuy || txs[1].Kind != models.KindSell {
		t.Errorf("order = %s, %s; want BUY, SELL", txs[0].Kind, txs[1].Kind)
	}
}

func TestAggregator_CandidatePairsSkipSelf(t *testing.T) {
	normalizer := NewNormalizer(testQuoteAssets, "USD", nil, common.NewSilentLogger())
	agg := NewAggregator(&mockExchange{}, normalizer, testQuoteAssets, time.Hour, common.NewSilentLogger())

	pairs := agg.candidatePairs("ETH")
	for _, p := range pairs {
		if p == "ETHETH" {
			t.Fatal("asset paired against itself")
		}
	}
	// 4 remaining quotes, each as suffix and prefix.
	if len(pairs) != 8 {
		t.Errorf("candidate pairs = %d, want 8", len(pairs))
	}
}
