// Package portfolio provides portfolio valuation services
package portfolio

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
	"github.com/rpaiva/folio/internal/models"
	"github.com/rpaiva/folio/internal/services/costbasis"
)

const rankingSize = 5

var decimalHundred = decimal.NewFromInt(100)

// Service implements PortfolioService. It combines live holdings with
// the cost-basis engine's output to produce per-asset and
// portfolio-level profit/loss, isolating per-asset failures so partial
// results are always preferable to total failure.
type Service struct {
	exchange       interfaces.ExchangeClient
	banking        interfaces.BankingClient
	costBasis      interfaces.CostBasisService
	classifier     *Classifier
	bankNormalizer *costbasis.Normalizer
	logger         *common.Logger
	itemIDs        []string
	concurrency    int
}

// NewService creates a new portfolio service. banking may be nil and
// itemIDs empty when no bank items are connected; the bank report then
// reports an empty snapshot.
func NewService(
	exchange interfaces.ExchangeClient,
	banking interfaces.BankingClient,
	costBasis interfaces.CostBasisService,
	cfg common.CostBasisConfig,
	itemIDs []string,
	logger *common.Logger,
) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		exchange:       exchange,
		banking:        banking,
		costBasis:      costBasis,
		classifier:     NewClassifier(),
		bankNormalizer: costbasis.NewNormalizer(nil, cfg.ReferenceCurrency, nil, logger),
		logger:         logger,
		itemIDs:        itemIDs,
		concurrency:    cfg.GetConcurrency(),
	}
}

// ComputeExchangeReport fetches the live exchange holdings snapshot and
// computes the full portfolio report from it.
func (s *Service) ComputeExchangeReport(ctx context.Context) (*models.PortfolioReport, error) {
	holdings, err := s.exchange.GetAccountHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange holdings: %w", err)
	}

	snapshot := make([]models.HoldingSnapshot, 0, len(holdings))
	for _, h := range holdings {
		snapshot = append(snapshot, h.Snapshot())
	}

	return s.ComputeReport(ctx, snapshot)
}

// ComputeReport runs per-asset valuation across the holdings snapshot
// with bounded concurrency. A failure anywhere in one asset's chain is
// caught and replaced with a best-effort degraded record; only an empty
// snapshot is a hard failure.
func (s *Service) ComputeReport(ctx context.Context, snapshot []models.HoldingSnapshot) (*models.PortfolioReport, error) {
	if len(snapshot) == 0 {
		return nil, models.ErrEmptySnapshot
	}

	reports := make([]models.AssetReport, len(snapshot))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for i, holding := range snapshot {
		wg.Add(1)
		go func(i int, holding models.HoldingSnapshot) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().
						Str("asset", holding.AssetSymbol).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(debug.Stack())).
						Msg("Recovered from panic in asset valuation")
					reports[i] = s.degradedReport(holding)
				}
			}()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				reports[i] = s.degradedReport(holding)
				return
			}

			report, err := s.valuateAsset(ctx, holding)
			if err != nil {
				s.logger.Warn().Err(err).Str("asset", holding.AssetSymbol).Msg("Asset valuation failed, emitting degraded record")
				reports[i] = s.degradedReport(holding)
				return
			}
			reports[i] = *report
		}(i, holding)
	}

	wg.Wait()

	return s.assemble(reports), nil
}

// valuateAsset combines one holding with its reconstructed cost basis.
func (s *Service) valuateAsset(ctx context.Context, holding models.HoldingSnapshot) (*models.AssetReport, error) {
	if holding.AssetSymbol == "" {
		return nil, fmt.Errorf("holding with empty asset symbol")
	}
	if holding.Quantity.IsNegative() {
		return nil, fmt.Errorf("holding %s has negative quantity", holding.AssetSymbol)
	}

	basis, err := s.costBasis.ComputeCostBasis(ctx, holding.AssetSymbol, holding.Quantity)
	if err != nil {
		return nil, fmt.Errorf("cost basis for %s: %w", holding.AssetSymbol, err)
	}

	currentValue := holding.Quantity.Mul(holding.LivePrice)
	profit := currentValue.Sub(basis.TotalInvested)

	profitPct := 0.0
	if basis.TotalInvested.IsPositive() {
		profitPct, _ = profit.Div(basis.TotalInvested).Mul(decimalHundred).Float64()
	}

	category, subcategory := s.classifier.Classify(holding.AssetSymbol)

	// A history of only unpriced transfers carries no cost information;
	// treat it like missing history so totals and percentages stay honest.
	unknown := !basis.Known() || !basis.TotalInvested.IsPositive()

	return &models.AssetReport{
		AssetSymbol:      holding.AssetSymbol,
		Category:         category,
		Subcategory:      subcategory,
		CurrentQuantity:  holding.Quantity,
		CurrentPrice:     holding.LivePrice,
		CurrentValue:     currentValue,
		CostBasis:        *basis,
		Profit:           profit,
		ProfitPercent:    profitPct,
		PriceChangePct:   holding.PriceChangePct,
		CostBasisUnknown: unknown,
	}, nil
}

// degradedReport builds the best-effort record for an asset whose
// computation failed: valuation from live data only, zero cost basis,
// flagged unknown.
func (s *Service) degradedReport(holding models.HoldingSnapshot) models.AssetReport {
	currentValue := holding.Quantity.Mul(holding.LivePrice)
	category, subcategory := s.classifier.Classify(holding.AssetSymbol)

	return models.AssetReport{
		AssetSymbol:     holding.AssetSymbol,
		Category:        category,
		Subcategory:     subcategory,
		CurrentQuantity: holding.Quantity,
		CurrentPrice:    holding.LivePrice,
		CurrentValue:    currentValue,
		CostBasis: models.CostBasisResult{
			AssetSymbol:       holding.AssetSymbol,
			TotalQuantityHeld: holding.Quantity,
			TotalInvested:     decimal.Zero,
			AveragePrice:      decimal.Zero,
		},
		Profit:           currentValue,
		PriceChangePct:   holding.PriceChangePct,
		CostBasisUnknown: true,
		Degraded:         true,
	}
}

// assemble computes aggregate totals and ranked views. Totals cover only
// assets that completed with cost-basis history; assets lacking history
// are reported separately so the totals stay honest.
func (s *Service) assemble(reports []models.AssetReport) *models.PortfolioReport {
	out := &models.PortfolioReport{
		Assets:        reports,
		TotalInvested: decimal.Zero,
		TotalValue:    decimal.Zero,
		TotalProfit:   decimal.Zero,
		GeneratedAt:   time.Now().UTC(),
	}

	for _, r := range reports {
		if r.CostBasisUnknown {
			out.UnknownBasisAssets = append(out.UnknownBasisAssets, r.AssetSymbol)
			continue
		}
		out.TotalInvested = out.TotalInvested.Add(r.CostBasis.TotalInvested)
		out.TotalValue = out.TotalValue.Add(r.CurrentValue)
		out.TotalProfit = out.TotalProfit.Add(r.Profit)
	}

	if out.TotalInvested.IsPositive() {
		out.TotalProfitPct, _ = out.TotalProfit.Div(out.TotalInvested).Mul(decimalHundred).Float64()
	}

	out.TopGainers = rankByProfitPct(reports, true)
	out.TopLosers = rankByProfitPct(reports, false)

	return out
}

// rankByProfitPct returns the top assets by profit percentage. Assets
// without cost-basis history or without price-change data carry no
// meaningful percentage and are excluded.
func rankByProfitPct(reports []models.AssetReport, gainers bool) []models.AssetReport {
	ranked := make([]models.AssetReport, 0, len(reports))
	for _, r := range reports {
		if r.CostBasisUnknown || r.PriceChangePct == 0 {
			continue
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if gainers {
			return ranked[i].ProfitPercent > ranked[j].ProfitPercent
		}
		return ranked[i].ProfitPercent < ranked[j].ProfitPercent
	})

	if len(ranked) > rankingSize {
		ranked = ranked[:rankingSize]
	}
	return ranked
}

// Ensure Service implements PortfolioService
var _ interfaces.PortfolioService = (*Service)(nil)
