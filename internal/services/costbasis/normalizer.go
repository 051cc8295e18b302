package costbasis

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
	"github.com/rpaiva/folio/internal/models"
)

// Normalizer maps source-specific records into the canonical transaction
// shape for one target asset. Mapping is deterministic; unrecognized
// records are skipped with a debug log, never propagated as failures.
type Normalizer struct {
	quoteAssets       []string
	referenceCurrency string
	rates             interfaces.RatesClient
	logger            *common.Logger
}

// NewNormalizer creates a normalizer for the configured reference-quote
// list and reference currency.
func NewNormalizer(quoteAssets []string, referenceCurrency string, rates interfaces.RatesClient, logger *common.Logger) *Normalizer {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Normalizer{
		quoteAssets:       quoteAssets,
		referenceCurrency: referenceCurrency,
		rates:             rates,
		logger:            logger,
	}
}

// splitPair resolves a pair symbol into (base, quote) legs relative to
// the target asset. A recognized pair either ends in one of the
// reference quote assets or ends in the target itself (target as the
// quote leg of an inverted pair).
func (n *Normalizer) splitPair(pairSymbol, target string) (base, quote string, err error) {
	for _, q := range n.quoteAssets {
		if strings.HasSuffix(pairSymbol, q) && len(pairSymbol) > len(q) {
			return strings.TrimSuffix(pairSymbol, q), q, nil
		}
	}
	if strings.HasSuffix(pairSymbol, target) && len(pairSymbol) > len(target) {
		return strings.TrimSuffix(pairSymbol, target), target, nil
	}
	return "", "", fmt.Errorf("%w: pair %q has no recognized quote suffix", models.ErrUnparseableRecord, pairSymbol)
}

// NormalizeTradeFill maps one spot fill to a canonical transaction for
// the target asset. When the target is the base leg, the fill direction
// carries over; when the target is the quote leg, the economic direction
// inverts — a buy of the base spends (sells) the quote asset, with an
// implied unit price of 1/fill price.
func (n *Normalizer) NormalizeTradeFill(target string, fill *models.TradeFill) (*models.Transaction, error) {
	base, quote, err := n.splitPair(fill.PairSymbol, target)
	if err != nil {
		n.logger.Debug().Str("pair", fill.PairSymbol).Str("target", target).Msg("Skipping unparseable trade fill")
		return nil, err
	}

	tx := &models.Transaction{
		AssetSymbol: target,
		OccurredAt:  fill.Time,
		SourceID:    fill.SourceID,
		Origin:      models.OriginTrade,
	}

	switch target {
	case base:
		if fill.IsBuyer {
			tx.Kind = models.KindBuy
		} else {
			tx.Kind = models.KindSell
		}
		tx.Quantity = fill.Quantity
		tx.GrossAmount = fill.QuoteQuantity

	case quote:
		if fill.IsBuyer {
			tx.Kind = models.KindSell
		} else {
			tx.Kind = models.KindBuy
		}
		tx.Quantity = fill.QuoteQuantity
		tx.GrossAmount = fill.Quantity

	default:
		n.logger.Debug().Str("pair", fill.PairSymbol).Str("target", target).Msg("Trade fill does not involve target asset")
		return nil, fmt.Errorf("%w: pair %q does not involve %q", models.ErrUnparseableRecord, fill.PairSymbol, target)
	}

	if !tx.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive fill quantity", models.ErrUnparseableRecord)
	}

	return tx, nil
}

// NormalizeTransfer maps a deposit or withdrawal record. Only records in
// terminal completed status are included; a transfer carries quantity
// but no trade price, so its gross amount is zero.
func (n *Normalizer) NormalizeTransfer(rec *models.TransferRecord) (*models.Transaction, bool) {
	if rec.Status != models.TransferCompleted {
		return nil, false
	}
	if !rec.Amount.IsPositive() {
		return nil, false
	}

	tx := &models.Transaction{
		AssetSymbol: rec.AssetSymbol,
		Quantity:    rec.Amount,
		GrossAmount: decimal.Zero,
		OccurredAt:  rec.Time,
		SourceID:    rec.SourceID,
	}
	if rec.Direction == models.TransferIn {
		tx.Kind = models.KindDeposit
		tx.Origin = models.OriginDeposit
	} else {
		tx.Kind = models.KindWithdraw
		tx.Origin = models.OriginWithdraw
	}

	return tx, true
}

// NormalizeConversion maps a direct asset-for-asset conversion for the
// target asset: destination leg is a buy, source leg a sell. The
// counter-leg amount is converted to reference currency at the
// conversion timestamp; when no rate is obtainable the raw amount is
// used as-is, which is correct for stablecoin legs and a best-effort
// approximation otherwise.
func (n *Normalizer) NormalizeConversion(ctx context.Context, target string, rec *models.ConversionRecord) (*models.Transaction, bool) {
	tx := &models.Transaction{
		AssetSymbol: target,
		OccurredAt:  rec.Time,
		SourceID:    rec.SourceID,
		Origin:      models.OriginConvert,
	}

	switch target {
	case rec.ToAsset:
		tx.Kind = models.KindBuy
		tx.Quantity = rec.ToAmount
		tx.GrossAmount = n.toReference(ctx, rec.FromAmount, rec.FromAsset)
	case rec.FromAsset:
		tx.Kind = models.KindSell
		tx.Quantity = rec.FromAmount
		tx.GrossAmount = n.toReference(ctx, rec.ToAmount, rec.ToAsset)
	default:
		return nil, false
	}

	if !tx.Quantity.IsPositive() {
		return nil, false
	}

	return tx, true
}

// NormalizeBankTransaction maps one open-banking investment transaction.
// Types that are not acquisition or disposal events (TAX, DIVIDEND,
// TRANSFER) are excluded from cost-basis reconstruction.
func (n *Normalizer) NormalizeBankTransaction(assetSymbol string, rec *models.BankTransaction) (*models.Transaction, bool) {
	var kind models.TransactionKind
	switch strings.ToUpper(rec.Type) {
	case "BUY":
		kind = models.KindBuy
	case "SELL":
		kind = models.KindSell
	default:
		return nil, false
	}
	if !rec.Quantity.IsPositive() {
		return nil, false
	}

	return &models.Transaction{
		AssetSymbol: assetSymbol,
		Kind:        kind,
		Quantity:    rec.Quantity,
		GrossAmount: rec.Amount,
		OccurredAt:  rec.Date,
		SourceID:    "bank_" + rec.ID,
		Origin:      models.OriginTrade,
	}, true
}

// toReference converts an amount in the given asset's units to reference
// currency. Stablecoin and reference-currency legs pass through 1:1.
func (n *Normalizer) toReference(ctx context.Context, amount decimal.Decimal, asset string) decimal.Decimal {
	if asset == n.referenceCurrency || isReferenceEquivalent(asset) {
		return amount
	}
	if n.rates == nil {
		return amount
	}

	converted, err := n.rates.Convert(ctx, amount, asset, n.referenceCurrency)
	if err != nil {
		n.logger.Warn().Err(err).Str("asset", asset).Msg("Conversion leg rate unavailable, using raw amount")
		return amount
	}
	return converted
}

// isReferenceEquivalent reports whether the asset trades 1:1 with the
// reference currency for valuation purposes.
func isReferenceEquivalent(asset string) bool {
	switch asset {
	case "USDT", "USDC", "BUSD", "DAI", "TUSD", "USDP":
		return true
	}
	return false
}
