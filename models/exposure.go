package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource records which tier of the price resolution chain produced a
// price.
type PriceSource string

const (
	// PriceSourceLast is a positive last traded price.
	PriceSourceLast PriceSource = "last"
	// PriceSourceMidpoint is the bid/ask midpoint.
	PriceSourceMidpoint PriceSource = "midpoint"
	// PriceSourceMark is the feed's computed mid-market price.
	PriceSourceMark PriceSource = "mark"
	// PriceSourceAvgCost is the equity average cost fallback.
	PriceSourceAvgCost PriceSource = "avg_cost"
	// PriceSourcePlaceholder is the fixed option placeholder fallback.
	PriceSourcePlaceholder PriceSource = "placeholder"
	// PriceSourceNone means every tier was exhausted; the price is zero.
	PriceSourceNone PriceSource = "none"
)

// Degraded reports whether the source sits below the live market data tiers.
func (s PriceSource) Degraded() bool {
	switch s {
	case PriceSourceAvgCost, PriceSourcePlaceholder, PriceSourceNone:
		return true
	default:
		return false
	}
}

// UnderlyingExposure aggregates every position of one underlying symbol.
// StockShareCount and OptionDeltaShares are signed; OptionActualValue is the
// non-negative premium value of the option legs.
type UnderlyingExposure struct {
	Symbol            string          `json:"symbol"`
	StockShareCount   decimal.Decimal `json:"stock_share_count"`
	StockMarketValue  decimal.Decimal `json:"stock_market_value"`
	OptionDeltaShares decimal.Decimal `json:"option_delta_shares"`
	OptionActualValue decimal.Decimal `json:"option_actual_value"`
	UnderlyingPrice   decimal.Decimal `json:"underlying_price"`
	PriceSource       PriceSource     `json:"price_source"`
	Degraded          bool            `json:"degraded"`
	HeuristicGreeks   bool            `json:"heuristic_greeks"`
}

// NotionalValue is the delta adjusted exposure of the underlying: stock
// market value plus option delta shares priced at the underlying price.
func (u UnderlyingExposure) NotionalValue() decimal.Decimal {
	return u.StockMarketValue.Add(u.OptionDeltaShares.Mul(u.UnderlyingPrice))
}

// PortfolioMetrics are the account level results of one aggregation pass.
// TotalNotional is the notional gross account value (NGAV). Both leverage
// ratios are zero when the account totals are degenerate.
type PortfolioMetrics struct {
	TotalNotional    decimal.Decimal `json:"total_notional"`
	NetLiquidation   decimal.Decimal `json:"net_liquidation"`
	GrossPositionVal decimal.Decimal `json:"gross_position_value"`
	NotionalLeverage decimal.Decimal `json:"notional_leverage_ratio"`
	StandardLeverage decimal.Decimal `json:"standard_leverage_ratio"`
	DegenerateTotals bool            `json:"degenerate_totals"`
}

// PassStats carries diagnostics about how an aggregation pass resolved its
// inputs.
type PassStats struct {
	Positions      int           `json:"positions"`
	Underlyings    int           `json:"underlyings"`
	QuotesFetched  int           `json:"quotes_fetched"`
	QuotesMissing  int           `json:"quotes_missing"`
	PriceFallbacks int           `json:"price_fallbacks"`
	GreekFallbacks int           `json:"greek_fallbacks"`
	Duration       time.Duration `json:"duration_ns"`
}

// ExposureReport is the complete, immutable result of one aggregation pass.
// Exposures are ordered by symbol. A published report always replaces the
// previous one as a whole.
type ExposureReport struct {
	PassID    string               `json:"pass_id"`
	Account   string               `json:"account,omitempty"`
	Currency  string               `json:"currency,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
	Exposures []UnderlyingExposure `json:"exposures"`
	Metrics   PortfolioMetrics     `json:"metrics"`
	Stats     PassStats            `json:"stats"`
}

// Exposure returns the record for the given underlying symbol, or false
// when the report does not contain it.
func (r *ExposureReport) Exposure(symbol string) (UnderlyingExposure, bool) {
	for _, e := range r.Exposures {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return UnderlyingExposure{}, false
}
