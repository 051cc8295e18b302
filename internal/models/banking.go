package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankInvestment is one investment position reported by the open-banking
// aggregator (funds, equities, fixed income) for a connected bank item.
type BankInvestment struct {
	ID           string          `json:"id"`
	ItemID       string          `json:"item_id"`
	Name         string          `json:"name"`
	Code         string          `json:"code"` // ticker or fund code when available
	Type         string          `json:"type"` // EQUITY, FIXED_INCOME, MUTUAL_FUND, ETF
	Subtype      string          `json:"subtype"`
	Balance      decimal.Decimal `json:"balance"`  // current market value
	Quantity     decimal.Decimal `json:"quantity"` // units held
	UnitValue    decimal.Decimal `json:"unit_value"`
	CurrencyCode string          `json:"currency_code"`
	Date         time.Time       `json:"date"`
}

// Snapshot converts the bank investment into a holding snapshot keyed by
// its code (falling back to name when the code is absent).
func (i *BankInvestment) Snapshot() HoldingSnapshot {
	symbol := i.Code
	if symbol == "" {
		symbol = i.Name
	}
	return HoldingSnapshot{
		AssetSymbol: symbol,
		Quantity:    i.Quantity,
		LivePrice:   i.UnitValue,
	}
}

// BankTransaction is one investment transaction from the open-banking
// aggregator. Types beyond BUY/SELL (TAX, DIVIDEND, TRANSFER) are not
// acquisition events and are skipped during normalization.
type BankTransaction struct {
	ID           string          `json:"id"`
	InvestmentID string          `json:"investment_id"`
	Type         string          `json:"type"` // BUY, SELL, TAX, TRANSFER, DIVIDEND
	Quantity     decimal.Decimal `json:"quantity"`
	UnitValue    decimal.Decimal `json:"unit_value"`
	Amount       decimal.Decimal `json:"amount"` // total operation value
	Date         time.Time       `json:"date"`
}
