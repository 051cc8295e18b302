// Package models defines data structures for Folio
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the economic direction of a canonical transaction.
// Deposits and withdrawals move quantity without a known trade price.
type TransactionKind string

const (
	KindBuy      TransactionKind = "BUY"
	KindSell     TransactionKind = "SELL"
	KindDeposit  TransactionKind = "DEPOSIT"
	KindWithdraw TransactionKind = "WITHDRAW"
)

// TransactionOrigin records which kind of external record a transaction
// was derived from. Kept for audit only; it never affects cost-basis math.
type TransactionOrigin string

const (
	OriginTrade    TransactionOrigin = "TRADE"
	OriginDeposit  TransactionOrigin = "DEPOSIT"
	OriginWithdraw TransactionOrigin = "WITHDRAW"
	OriginConvert  TransactionOrigin = "CONVERT"
)

// Transaction is the canonical, post-normalization transaction shape.
// Every source record (trade fill, transfer, conversion) is mapped into
// this shape before aggregation; union-shaped external payloads never
// leak past the normalizer.
type Transaction struct {
	AssetSymbol string            `json:"asset_symbol"`
	Kind        TransactionKind   `json:"kind"`
	Quantity    decimal.Decimal   `json:"quantity"`     // positive amount of the asset moved
	GrossAmount decimal.Decimal   `json:"gross_amount"` // value in reference currency; zero for unpriced transfers
	OccurredAt  time.Time         `json:"occurred_at"`
	SourceID    string            `json:"source_id"` // unique per source; dedup key
	Origin      TransactionOrigin `json:"origin"`
}

// IsAcquisition reports whether the transaction adds to holdings.
func (t *Transaction) IsAcquisition() bool {
	return t.Kind == KindBuy || t.Kind == KindDeposit
}

// IsDisposal reports whether the transaction removes from holdings.
func (t *Transaction) IsDisposal() bool {
	return t.Kind == KindSell || t.Kind == KindWithdraw
}

// UnitPrice returns the implied per-unit price in reference currency,
// or zero when the transaction carries no price (transfers).
func (t *Transaction) UnitPrice() decimal.Decimal {
	if t.Quantity.IsZero() || t.GrossAmount.IsZero() {
		return decimal.Zero
	}
	return t.GrossAmount.Div(t.Quantity)
}
