package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChainParams describes the option chain available for an underlying:
// the tradeable expirations and the strike ladder.
type ChainParams struct {
	Symbol      string            `json:"symbol"`
	ConID       int64             `json:"conid,omitempty"`
	Expirations []string          `json:"expirations"`
	Strikes     []decimal.Decimal `json:"strikes"`
	Multiplier  int               `json:"multiplier,omitempty"`
}

// ChainRow is one strike row of the rendered option chain: the quoted
// prices, the resolved price with its source, the greeks, and the two
// relative columns from the desk view (price as a percentage of the stock
// price, and premium over intrinsic value).
type ChainRow struct {
	Strike        decimal.Decimal `json:"strike"`
	Right         Right           `json:"right"`
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	Last          decimal.Decimal `json:"last"`
	Price         decimal.Decimal `json:"price"`
	PriceSource   PriceSource     `json:"price_source"`
	Delta         decimal.Decimal `json:"delta"`
	Gamma         decimal.Decimal `json:"gamma"`
	Heuristic     bool            `json:"heuristic"`
	PctOfStock    decimal.Decimal `json:"pct_of_stock"`
	DiffFromStock decimal.Decimal `json:"diff_from_stock"`
}

// ChainView is the assembled option chain for one symbol and expiry,
// windowed to the strikes around the spot price.
type ChainView struct {
	Symbol    string          `json:"symbol"`
	Expiry    string          `json:"expiry"`
	Spot      decimal.Decimal `json:"spot"`
	SpotBasis PriceSource     `json:"spot_basis"`
	Calls     []ChainRow      `json:"calls"`
	Puts      []ChainRow      `json:"puts"`
	Timestamp time.Time       `json:"timestamp"`
}
