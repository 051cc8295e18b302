package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostBasisResult is the output of the average-cost engine for one asset.
// TotalQuantityHeld is reconstructed from transaction history and may
// diverge from the live-reported holding quantity when history is
// incomplete; callers must treat TransactionCount == 0 as "cost basis
// unknown", never as "no profit".
type CostBasisResult struct {
	AssetSymbol       string          `json:"asset_symbol"`
	TotalQuantityHeld decimal.Decimal `json:"total_quantity_held"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	TransactionCount  int             `json:"transaction_count"`
	// IncompleteHistory is set when a disposal exceeded the tracked
	// holdings, meaning some acquisitions predate the visible history.
	IncompleteHistory bool `json:"incomplete_history,omitempty"`
}

// Known reports whether any transaction history backed this result.
func (r *CostBasisResult) Known() bool {
	return r.TransactionCount > 0
}

// HoldingSnapshot is one live holding: an asset, its quantity, and its
// current price in reference currency.
type HoldingSnapshot struct {
	AssetSymbol    string          `json:"asset_symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	LivePrice      decimal.Decimal `json:"live_price"`
	PriceChangePct float64         `json:"price_change_pct"` // 24h change, for rankings
}

// AssetReport is the final per-asset valuation record.
type AssetReport struct {
	AssetSymbol      string          `json:"asset_symbol"`
	Category         string          `json:"category,omitempty"`
	Subcategory      string          `json:"subcategory,omitempty"`
	CurrentQuantity  decimal.Decimal `json:"current_quantity"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	CostBasis        CostBasisResult `json:"cost_basis"`
	Profit           decimal.Decimal `json:"profit"`
	ProfitPercent    float64         `json:"profit_percent"`
	PriceChangePct   float64         `json:"price_change_pct"`
	CostBasisUnknown bool            `json:"cost_basis_unknown"`
	Degraded         bool            `json:"degraded,omitempty"` // computation failed; best-effort record
}

// PortfolioReport is the batch result: per-asset reports plus aggregate
// totals. Totals cover only assets that completed with cost-basis
// history; assets lacking history are listed separately.
type PortfolioReport struct {
	Assets             []AssetReport   `json:"assets"`
	TotalInvested      decimal.Decimal `json:"total_invested"`
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
	TotalProfitPct     float64         `json:"total_profit_pct"`
	UnknownBasisAssets []string        `json:"unknown_basis_assets"`
	TopGainers         []AssetReport   `json:"top_gainers"`
	TopLosers          []AssetReport   `json:"top_losers"`
	GeneratedAt        time.Time       `json:"generated_at"`
}
