package portfolio

// Classifier assigns risk/liquidity category labels to assets for
// reporting. Labels are presentation metadata only; they never feed into
// cost-basis math.
type Classifier struct {
	stablecoins map[string]bool
	majors      map[string]bool
}

// NewClassifier creates a classifier with the built-in taxonomy.
func NewClassifier() *Classifier {
	return &Classifier{
		stablecoins: map[string]bool{
			"USDT": true, "USDC": true, "BUSD": true,
			"DAI": true, "TUSD": true, "USDP": true,
		},
		majors: map[string]bool{
			"BTC": true, "ETH": true,
		},
	}
}

// Classify returns (category, subcategory) for an asset symbol.
// Stablecoins are treated as fixed-income-like holdings; BTC and ETH as
// large-cap crypto; everything else as altcoin.
func (c *Classifier) Classify(assetSymbol string) (category, subcategory string) {
	switch {
	case c.stablecoins[assetSymbol]:
		return "fixed_income", "stablecoin"
	case c.majors[assetSymbol]:
		return "crypto", "large_cap"
	default:
		return "crypto", "altcoin"
	}
}

// ClassifyBankInvestment maps an open-banking investment type to the
// same taxonomy used for exchange assets.
func (c *Classifier) ClassifyBankInvestment(invType, subtype string) (category, subcategory string) {
	switch invType {
	case "FIXED_INCOME":
		return "fixed_income", subtypeOrDefault(subtype, "bond")
	case "EQUITY":
		return "equity", subtypeOrDefault(subtype, "stock")
	case "ETF":
		return "equity", "etf"
	case "MUTUAL_FUND":
		return "fund", subtypeOrDefault(subtype, "mutual_fund")
	default:
		return "other", subtypeOrDefault(subtype, "unknown")
	}
}

func subtypeOrDefault(subtype, def string) string {
	if subtype == "" {
		return def
	}
	return subtype
}
