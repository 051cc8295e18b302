package costbasis

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
	"github.com/rpaiva/folio/internal/models"
)

// Service implements CostBasisService: collect, normalize, fold.
type Service struct {
	aggregator *Aggregator
	logger     *common.Logger
}

// NewService creates a cost-basis service over the exchange sources.
func NewService(exchange interfaces.ExchangeClient, rates interfaces.RatesClient, cfg common.CostBasisConfig, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	normalizer := NewNormalizer(cfg.QuoteAssets, cfg.ReferenceCurrency, rates, logger)
	return &Service{
		aggregator: NewAggregator(exchange, normalizer, cfg.QuoteAssets, cfg.GetLookback(), logger),
		logger:     logger,
	}
}

// WithClock overrides the aggregator time source; used by tests to pin
// the lookback window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.aggregator.now = now
	return s
}

// ComputeCostBasis reconstructs the average acquisition cost for one
// asset. With no transaction history the live holding quantity is
// reported unchanged, invested stays zero, and TransactionCount == 0
// flags the basis as unknown.
func (s *Service) ComputeCostBasis(ctx context.Context, assetSymbol string, holdingQuantity decimal.Decimal) (*models.CostBasisResult, error) {
	transactions := s.aggregator.Collect(ctx, assetSymbol)

	if len(transactions) == 0 {
		s.logger.Debug().Str("asset", assetSymbol).Msg("No transaction history, cost basis unknown")
		return &models.CostBasisResult{
			AssetSymbol:       assetSymbol,
			TotalQuantityHeld: holdingQuantity,
			TotalInvested:     decimal.Zero,
			AveragePrice:      decimal.Zero,
			TransactionCount:  0,
		}, nil
	}

	result := Fold(assetSymbol, transactions)

	s.logger.Debug().
		Str("asset", assetSymbol).
		Int("transactions", result.TransactionCount).
		Str("invested", result.TotalInvested.String()).
		Str("avg_price", result.AveragePrice.String()).
		Msg("Cost basis computed")

	return &result, nil
}

// Ensure Service implements CostBasisService
var _ interfaces.CostBasisService = (*Service)(nil)
