package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeFill is one spot trade execution for a trading pair.
type TradeFill struct {
	PairSymbol    string          `json:"pair_symbol"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`       // base-asset units
	QuoteQuantity decimal.Decimal `json:"quote_quantity"` // notional in quote units
	IsBuyer       bool            `json:"is_buyer"`       // fill bought the base asset
	Time          time.Time       `json:"time"`
	SourceID      string          `json:"source_id"`
}

// TransferStatus is the lifecycle state of an exchange deposit or withdrawal.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// TransferDirection distinguishes deposits from withdrawals.
type TransferDirection string

const (
	TransferIn  TransferDirection = "deposit"
	TransferOut TransferDirection = "withdraw"
)

// TransferRecord is one deposit or withdrawal of an asset. Only records
// in completed status are usable for cost-basis reconstruction.
type TransferRecord struct {
	AssetSymbol string            `json:"asset_symbol"`
	Direction   TransferDirection `json:"direction"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransferStatus    `json:"status"`
	Time        time.Time         `json:"time"`
	SourceID    string            `json:"source_id"`
}

// ConversionRecord is one direct asset-for-asset conversion (no order book).
type ConversionRecord struct {
	FromAsset  string          `json:"from_asset"`
	FromAmount decimal.Decimal `json:"from_amount"`
	ToAsset    string          `json:"to_asset"`
	ToAmount   decimal.Decimal `json:"to_amount"`
	Time       time.Time       `json:"time"`
	SourceID   string          `json:"source_id"`
}

// HoldingBalance is one non-zero exchange account balance with its live
// price and 24h change in reference currency.
type HoldingBalance struct {
	AssetSymbol    string          `json:"asset_symbol"`
	Free           decimal.Decimal `json:"free"`
	Locked         decimal.Decimal `json:"locked"`
	Price          decimal.Decimal `json:"price"`
	PriceChangePct float64         `json:"price_change_pct"`
}

// Total returns free plus locked quantity.
func (h *HoldingBalance) Total() decimal.Decimal {
	return h.Free.Add(h.Locked)
}

// Snapshot converts the balance into a holding snapshot for valuation.
func (h *HoldingBalance) Snapshot() HoldingSnapshot {
	return HoldingSnapshot{
		AssetSymbol:    h.AssetSymbol,
		Quantity:       h.Total(),
		LivePrice:      h.Price,
		PriceChangePct: h.PriceChangePct,
	}
}
