// Package costbasis reconstructs average acquisition cost from
// multi-source transaction history.
package costbasis

import (
	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/models"
)

// Fold reduces an ordered transaction sequence to a cost-basis result
// under the moving weighted-average cost model.
//
// Acquisitions (BUY, DEPOSIT) add their gross amount to invested capital
// and their quantity to holdings; a deposit with no known price adds
// quantity at zero cost, deliberately understating the basis rather than
// guessing. Disposals (SELL, WITHDRAW) remove cost proportionally to the
// fraction of holdings removed, independent of which lot is sold. A
// disposal exceeding tracked holdings is clamped — it signals incomplete
// history, never a crash or a negative balance.
//
// Transactions must already be sorted ascending by OccurredAt with all
// quantities positive; the normalizer guarantees both.
func Fold(assetSymbol string, transactions []models.Transaction) models.CostBasisResult {
	quantity := decimal.Zero
	invested := decimal.Zero
	incomplete := false

	for i := range transactions {
		t := &transactions[i]
		switch {
		case t.IsAcquisition():
			invested = invested.Add(t.GrossAmount)
			quantity = quantity.Add(t.Quantity)

		case t.IsDisposal():
			if quantity.IsZero() {
				// Nothing tracked to dispose of; ignore.
				incomplete = true
				continue
			}
			ratio := t.Quantity.Div(quantity)
			if ratio.GreaterThan(decimal.NewFromInt(1)) {
				ratio = decimal.NewFromInt(1)
				incomplete = true
			}
			invested = invested.Sub(invested.Mul(ratio))
			quantity = quantity.Sub(t.Quantity)
			if quantity.IsNegative() {
				quantity = decimal.Zero
			}
		}
	}

	averagePrice := decimal.Zero
	if quantity.IsPositive() {
		averagePrice = invested.Div(quantity)
	}

	return models.CostBasisResult{
		AssetSymbol:       assetSymbol,
		TotalQuantityHeld: quantity,
		TotalInvested:     invested,
		AveragePrice:      averagePrice,
		TransactionCount:  len(transactions),
		IncompleteHistory: incomplete,
	}
}
