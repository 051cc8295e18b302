package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rpaiva/folio/internal/models"
	"github.com/rpaiva/folio/internal/services/costbasis"
)

// ComputeBankReport aggregates investment positions across the connected
// bank items. Each investment's BUY/SELL history is folded into a cost
// basis and valuated against the bank-reported balance. A failed
// transaction fetch degrades that one investment; an auth failure against
// the aggregator is fatal for the whole report.
func (s *Service) ComputeBankReport(ctx context.Context) (*models.PortfolioReport, error) {
	if s.banking == nil || len(s.itemIDs) == 0 {
		return nil, models.ErrEmptySnapshot
	}

	var reports []models.AssetReport

	for _, itemID := range s.itemIDs {
		investments, err := s.banking.GetInvestments(ctx, itemID)
		if err != nil {
			if errors.Is(err, models.ErrAuthenticationFailed) {
				return nil, fmt.Errorf("bank item %s: %w", itemID, err)
			}
			s.logger.Warn().Err(err).Str("item_id", itemID).Msg("Bank item unavailable, skipping")
			continue
		}

		for _, inv := range investments {
			reports = append(reports, s.valuateInvestment(ctx, inv))
		}
	}

	if len(reports) == 0 {
		return nil, models.ErrEmptySnapshot
	}

	return s.assemble(reports), nil
}

// valuateInvestment folds one investment's history into a cost basis and
// combines it with the bank-reported position.
func (s *Service) valuateInvestment(ctx context.Context, inv *models.BankInvestment) models.AssetReport {
	snapshot := inv.Snapshot()

	history, err := s.banking.GetInvestmentTransactions(ctx, inv.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("investment", inv.ID).Msg("Investment history unavailable, emitting degraded record")
		report := s.degradedReport(snapshot)
		report.Category, report.Subcategory = s.classifier.ClassifyBankInvestment(inv.Type, inv.Subtype)
		report.CurrentValue = inv.Balance
		report.Profit = inv.Balance
		return report
	}

	transactions := make([]models.Transaction, 0, len(history))
	for _, rec := range history {
		if tx, ok := s.bankNormalizer.NormalizeBankTransaction(snapshot.AssetSymbol, rec); ok {
			transactions = append(transactions, *tx)
		}
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].OccurredAt.Before(transactions[j].OccurredAt)
	})

	basis := costbasis.Fold(snapshot.AssetSymbol, transactions)
	category, subcategory := s.classifier.ClassifyBankInvestment(inv.Type, inv.Subtype)

	profit := inv.Balance.Sub(basis.TotalInvested)
	profitPct := 0.0
	if basis.TotalInvested.IsPositive() {
		profitPct, _ = profit.Div(basis.TotalInvested).Mul(decimalHundred).Float64()
	}

	return models.AssetReport{
		AssetSymbol:      snapshot.AssetSymbol,
		Category:         category,
		Subcategory:      subcategory,
		CurrentQuantity:  inv.Quantity,
		CurrentPrice:     inv.UnitValue,
		CurrentValue:     inv.Balance,
		CostBasis:        basis,
		Profit:           profit,
		ProfitPercent:    profitPct,
		CostBasisUnknown: !basis.Known() || !basis.TotalInvested.IsPositive(),
	}
}
