package costbasis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rpaiva/folio/internal/common"
	"github.com/rpaiva/folio/internal/interfaces"
	"github.com/rpaiva/folio/internal/models"
)

// Aggregator collects candidate transactions for one asset from every
// exchange source — trade fills across all plausible pairs, deposits,
// withdrawals, and conversions within the lookback window — deduplicates
// them by source ID, and orders them for folding.
//
// Sources are queried concurrently and independently: a failed source
// contributes an empty set and never aborts collection for the others.
type Aggregator struct {
	exchange   interfaces.ExchangeClient
	normalizer *Normalizer
	logger     *common.Logger

	quoteAssets []string
	lookback    time.Duration
	now         func() time.Time
}

// NewAggregator creates an aggregator over the exchange sources.
func NewAggregator(exchange interfaces.ExchangeClient, normalizer *Normalizer, quoteAssets []string, lookback time.Duration, logger *common.Logger) *Aggregator {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Aggregator{
		exchange:    exchange,
		normalizer:  normalizer,
		logger:      logger,
		quoteAssets: quoteAssets,
		lookback:    lookback,
		now:         time.Now,
	}
}

// candidatePairs enumerates the trading pairs plausibly involving the
// asset: the asset against each reference quote, as base and as quote.
func (a *Aggregator) candidatePairs(asset string) []string {
	pairs := make([]string, 0, 2*len(a.quoteAssets))
	for _, q := range a.quoteAssets {
		if q == asset {
			continue
		}
		pairs = append(pairs, asset+q, q+asset)
	}
	return pairs
}

// Collect gathers, normalizes, deduplicates, and orders all transactions
// for one asset. The returned sequence is sorted ascending by
// OccurredAt; ties keep insertion order since true ordering within the
// same timestamp is unknowable.
func (a *Aggregator) Collect(ctx context.Context, asset string) []models.Transaction {
	to := a.now()
	from := to.Add(-a.lookback)

	var (
		mu           sync.Mutex
		wg           sync.WaitGroup
		transactions []models.Transaction
	)

	add := func(txs ...models.Transaction) {
		mu.Lock()
		transactions = append(transactions, txs...)
		mu.Unlock()
	}

	// Trade fills, one fetch per candidate pair. Most pairs do not exist
	// on the exchange; those fetches fail and contribute nothing.
	for _, pair := range a.candidatePairs(asset) {
		wg.Add(1)
		go func(pair string) {
			defer wg.Done()
			fills, err := a.exchange.GetMyTrades(ctx, pair)
			if err != nil {
				a.logger.Debug().Err(err).Str("pair", pair).Msg("Trade source unavailable")
				return
			}
			var batch []models.Transaction
			for _, fill := range fills {
				tx, err := a.normalizer.NormalizeTradeFill(asset, fill)
				if err != nil {
					continue
				}
				batch = append(batch, *tx)
			}
			add(batch...)
		}(pair)
	}

	// Deposits and withdrawals.
	wg.Add(1)
	go func() {
		defer wg.Done()
		deposits, err := a.exchange.GetDepositHistory(ctx, asset, from, to)
		if err != nil {
			a.logger.Warn().Err(err).Str("asset", asset).Msg("Deposit source unavailable")
			return
		}
		var batch []models.Transaction
		for _, rec := range deposits {
			if tx, ok := a.normalizer.NormalizeTransfer(rec); ok {
				batch = append(batch, *tx)
			}
		}
		add(batch...)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		withdrawals, err := a.exchange.GetWithdrawHistory(ctx, asset, from, to)
		if err != nil {
			a.logger.Warn().Err(err).Str("asset", asset).Msg("Withdrawal source unavailable")
			return
		}
		var batch []models.Transaction
		for _, rec := range withdrawals {
			if tx, ok := a.normalizer.NormalizeTransfer(rec); ok {
				batch = append(batch, *tx)
			}
		}
		add(batch...)
	}()

	// Conversions within the lookback window.
	wg.Add(1)
	go func() {
		defer wg.Done()
		conversions, err := a.exchange.GetConvertHistory(ctx, from, to)
		if err != nil {
			a.logger.Warn().Err(err).Str("asset", asset).Msg("Conversion source unavailable")
			return
		}
		var batch []models.Transaction
		for _, rec := range conversions {
			if tx, ok := a.normalizer.NormalizeConversion(ctx, asset, rec); ok {
				batch = append(batch, *tx)
			}
		}
		add(batch...)
	}()

	wg.Wait()

	deduped := dedupeBySourceID(transactions)
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].OccurredAt.Before(deduped[j].OccurredAt)
	})

	a.logger.Debug().
		Str("asset", asset).
		Int("collected", len(transactions)).
		Int("after_dedup", len(deduped)).
		Msg("Aggregated asset transactions")

	return deduped
}

// dedupeBySourceID drops later occurrences of a source ID, preserving
// order otherwise. The same logical event reported under different
// origin types is kept as-is; cross-origin reconciliation is out of scope.
func dedupeBySourceID(transactions []models.Transaction) []models.Transaction {
	seen := make(map[string]struct{}, len(transactions))
	out := transactions[:0:0]
	for _, tx := range transactions {
		if _, dup := seen[tx.SourceID]; dup {
			continue
		}
		seen[tx.SourceID] = struct{}{}
		out = append(out, tx)
	}
	return out
}
