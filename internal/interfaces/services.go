package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/models"
)

// CostBasisService reconstructs average acquisition cost per asset from
// multi-source transaction history.
type CostBasisService interface {
	// ComputeCostBasis gathers, normalizes, and folds all transactions
	// for one asset. holdingQuantity is the live-reported quantity, used
	// verbatim when no history exists.
	ComputeCostBasis(ctx context.Context, assetSymbol string, holdingQuantity decimal.Decimal) (*models.CostBasisResult, error)
}

// PortfolioService produces per-asset and portfolio-level valuation reports.
type PortfolioService interface {
	// ComputeReport runs per-asset valuation across the holdings snapshot,
	// isolating per-asset failures into degraded records.
	ComputeReport(ctx context.Context, snapshot []models.HoldingSnapshot) (*models.PortfolioReport, error)

	// ComputeExchangeReport fetches the exchange holdings snapshot and
	// computes the full report from it.
	ComputeExchangeReport(ctx context.Context) (*models.PortfolioReport, error)

	// ComputeBankReport valuates investment positions across the connected
	// bank items, folding each investment's history into a cost basis.
	ComputeBankReport(ctx context.Context) (*models.PortfolioReport, error)
}
