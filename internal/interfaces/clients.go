// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/models"
)

// ExchangeClient provides access to the crypto exchange API.
// Every call carries a context with a bounded timeout; a failed call
// degrades that source to an empty contribution at the aggregation layer.
type ExchangeClient interface {
	// GetAccountHoldings retrieves all non-zero balances with live prices
	GetAccountHoldings(ctx context.Context) ([]*models.HoldingBalance, error)

	// GetMyTrades retrieves spot trade fills for a trading pair
	GetMyTrades(ctx context.Context, pairSymbol string) ([]*models.TradeFill, error)

	// GetDepositHistory retrieves completed and pending deposits for an asset
	GetDepositHistory(ctx context.Context, asset string, from, to time.Time) ([]*models.TransferRecord, error)

	// GetWithdrawHistory retrieves withdrawals for an asset
	GetWithdrawHistory(ctx context.Context, asset string, from, to time.Time) ([]*models.TransferRecord, error)

	// GetConvertHistory retrieves direct asset conversions in a time range
	GetConvertHistory(ctx context.Context, from, to time.Time) ([]*models.ConversionRecord, error)
}

// BankingClient provides access to the open-banking aggregator API.
type BankingClient interface {
	// GetInvestments retrieves investment positions for a connected item
	GetInvestments(ctx context.Context, itemID string) ([]*models.BankInvestment, error)

	// GetInvestmentTransactions retrieves the transaction history of one investment
	GetInvestmentTransactions(ctx context.Context, investmentID string) ([]*models.BankTransaction, error)
}

// RatesClient converts amounts between currencies at a best-effort spot
// rate. Implementations cache rates with a TTL and refresh single-flight.
type RatesClient interface {
	// Convert converts amount from one currency to another
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}
