package engine

import (
	"github.com/shopspring/decimal"

	"exposureflow/models"
)

// optionPlaceholderPrice is the fixed last-resort price for option legs with
// no usable market data. Average cost is not a meaningful stand-in for an
// option premium, so the desk convention of 100 is used instead and the
// result is flagged as degraded.
var optionPlaceholderPrice = decimal.NewFromInt(100)

var two = decimal.NewFromInt(2)

// ResolvedPrice is the outcome of the price resolution chain: the price and
// the tier that produced it.
type ResolvedPrice struct {
	Price  decimal.Decimal
	Source models.PriceSource
}

// Degraded reports whether the price came from a fallback below live market
// data.
func (r ResolvedPrice) Degraded() bool {
	return r.Source.Degraded()
}

// Resolved reports whether any tier produced a price.
func (r ResolvedPrice) Resolved() bool {
	return r.Source != models.PriceSourceNone
}

// resolveQuotePrice walks the live market data tiers of the chain: last
// traded price, bid/ask midpoint, then the feed's mark price. Non-positive
// values are treated as absent.
func resolveQuotePrice(q models.QuoteSnapshot) (ResolvedPrice, bool) {
	if q.Last.IsPositive() {
		return ResolvedPrice{Price: q.Last, Source: models.PriceSourceLast}, true
	}
	if q.Bid.IsPositive() && q.Ask.IsPositive() {
		mid := q.Bid.Add(q.Ask).Div(two)
		return ResolvedPrice{Price: mid, Source: models.PriceSourceMidpoint}, true
	}
	if q.Mark.IsPositive() {
		return ResolvedPrice{Price: q.Mark, Source: models.PriceSourceMark}, true
	}
	return ResolvedPrice{Source: models.PriceSourceNone}, false
}

// ResolvePrice resolves a usable price for the given instrument from its
// quote snapshot. The chain is ordered: last price, bid/ask midpoint, mark
// price, then the instrument specific fallback (average cost for equities,
// the fixed placeholder for options). Fallback tiers set the degraded flag
// on the result; no tier raises an error. The only unresolvable case is an
// equity with no market data and a non-positive average cost, which yields
// a zero price with source "none".
func ResolvePrice(q models.QuoteSnapshot, inst models.Instrument, avgCost decimal.Decimal) ResolvedPrice {
	if res, ok := resolveQuotePrice(q); ok {
		return res
	}
	if inst.IsOption() {
		return ResolvedPrice{Price: optionPlaceholderPrice, Source: models.PriceSourcePlaceholder}
	}
	if avgCost.IsPositive() {
		return ResolvedPrice{Price: avgCost, Source: models.PriceSourceAvgCost}
	}
	return ResolvedPrice{Source: models.PriceSourceNone}
}
