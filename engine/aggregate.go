package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"exposureflow/models"
)

// QuoteLookup returns the quote snapshot for an instrument, keyed by
// models.Instrument.Key. The second return is false when no quote was
// fetched for the instrument; the resolution chain then falls through to
// the instrument specific fallback tier.
type QuoteLookup func(models.Instrument) (models.QuoteSnapshot, bool)

// AggregateStats counts how the aggregation resolved its inputs.
type AggregateStats struct {
	Positions      int
	Underlyings    int
	QuotesMissing  int
	PriceFallbacks int
	GreekFallbacks int
}

// underlyingGroup collects the per-symbol inputs before exposure math runs.
// Equity lot cost is accumulated quantity weighted so the average cost
// fallback does not depend on input order.
type underlyingGroup struct {
	symbol       string
	currency     string
	positions    []models.Position
	equityQtyAbs decimal.Decimal
	equityCost   decimal.Decimal
	hasEquity    bool
	undConID     int64
}

// AggregatePositions folds the position set into one exposure record per
// underlying symbol. The underlying price is resolved once per symbol and
// shared by every leg: equity legs contribute quantity and
// quantity x price, option legs contribute |delta| x multiplier x quantity
// delta weighted shares (keeping the quantity sign) and
// price x multiplier x |quantity| premium value. Results are ordered by
// symbol and independent of the input order.
func AggregatePositions(positions []models.Position, quotes QuoteLookup) ([]models.UnderlyingExposure, AggregateStats) {
	stats := AggregateStats{Positions: len(positions)}

	groups := make(map[string]*underlyingGroup)
	for _, pos := range positions {
		sym := pos.Instrument.Symbol
		g, ok := groups[sym]
		if !ok {
			g = &underlyingGroup{
				symbol:       sym,
				currency:     pos.Instrument.Currency,
				equityQtyAbs: decimal.Zero,
				equityCost:   decimal.Zero,
			}
			groups[sym] = g
		}
		g.positions = append(g.positions, pos)
		if pos.Instrument.IsEquity() {
			g.hasEquity = true
			abs := pos.Quantity.Abs()
			g.equityQtyAbs = g.equityQtyAbs.Add(abs)
			g.equityCost = g.equityCost.Add(abs.Mul(pos.AvgCost))
			if g.undConID == 0 {
				g.undConID = pos.Instrument.ConID
			}
		} else if g.undConID == 0 {
			g.undConID = pos.Instrument.UndConID
		}
	}

	exposures := make([]models.UnderlyingExposure, 0, len(groups))
	for _, g := range groups {
		exposures = append(exposures, aggregateGroup(g, quotes, &stats))
	}
	sort.Slice(exposures, func(i, j int) bool {
		return exposures[i].Symbol < exposures[j].Symbol
	})
	stats.Underlyings = len(exposures)
	return exposures, stats
}

func aggregateGroup(g *underlyingGroup, quotes QuoteLookup, stats *AggregateStats) models.UnderlyingExposure {
	und := models.Stock(g.symbol, g.currency)
	und.ConID = g.undConID

	undQuote, ok := quotes(und)
	if !ok {
		stats.QuotesMissing++
	}
	price := resolveUnderlyingPrice(undQuote, g)
	if price.Degraded() {
		stats.PriceFallbacks++
	}

	exp := models.UnderlyingExposure{
		Symbol:            g.symbol,
		StockShareCount:   decimal.Zero,
		StockMarketValue:  decimal.Zero,
		OptionDeltaShares: decimal.Zero,
		OptionActualValue: decimal.Zero,
		UnderlyingPrice:   price.Price,
		PriceSource:       price.Source,
		Degraded:          price.Degraded(),
	}

	for _, pos := range g.positions {
		if pos.Instrument.IsOption() {
			aggregateOptionLeg(&exp, pos, price.Price, quotes, stats)
			continue
		}
		exp.StockShareCount = exp.StockShareCount.Add(pos.Quantity)
		exp.StockMarketValue = exp.StockMarketValue.Add(pos.Quantity.Mul(price.Price))
	}
	return exp
}

// resolveUnderlyingPrice applies the resolution chain to the synthesized
// equity quote of an underlying. When the symbol has equity lots the
// average cost tier uses their quantity weighted cost; a symbol held only
// through options falls through to the option placeholder, matching the
// chain its legs would use.
func resolveUnderlyingPrice(q models.QuoteSnapshot, g *underlyingGroup) ResolvedPrice {
	if res, ok := resolveQuotePrice(q); ok {
		return res
	}
	if g.hasEquity {
		if g.equityQtyAbs.IsPositive() {
			avgCost := g.equityCost.Div(g.equityQtyAbs)
			if avgCost.IsPositive() {
				return ResolvedPrice{Price: avgCost, Source: models.PriceSourceAvgCost}
			}
		}
		return ResolvedPrice{Source: models.PriceSourceNone}
	}
	return ResolvedPrice{Price: optionPlaceholderPrice, Source: models.PriceSourcePlaceholder}
}

func aggregateOptionLeg(exp *models.UnderlyingExposure, pos models.Position, underlyingPrice decimal.Decimal, quotes QuoteLookup, stats *AggregateStats) {
	q, ok := quotes(pos.Instrument)
	if !ok {
		stats.QuotesMissing++
	}

	price := ResolvePrice(q, pos.Instrument, pos.AvgCost)
	if price.Degraded() {
		stats.PriceFallbacks++
		exp.Degraded = true
	}

	greeks := ResolveGreeks(q, pos.Instrument.Right, pos.Instrument.Strike, underlyingPrice)
	if greeks.Heuristic {
		stats.GreekFallbacks++
		exp.HeuristicGreeks = true
	}

	mult := pos.Instrument.EffectiveMultiplier()
	exp.OptionDeltaShares = exp.OptionDeltaShares.Add(greeks.Delta.Abs().Mul(mult).Mul(pos.Quantity))
	exp.OptionActualValue = exp.OptionActualValue.Add(price.Price.Mul(mult).Mul(pos.Quantity.Abs()))
}
