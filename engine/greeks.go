package engine

import (
	"github.com/shopspring/decimal"

	"exposureflow/models"
)

var (
	deltaInTheMoney = decimal.RequireFromString("0.7")
	deltaOutOfMoney = decimal.RequireFromString("0.3")
	heuristicGamma  = decimal.RequireFromString("0.01")
	deltaLowerBound = decimal.NewFromInt(-1)
	deltaUpperBound = decimal.NewFromInt(1)
)

// ResolvedGreeks carries the delta and gamma used for an option leg.
// Heuristic is set when the values came from the moneyness table rather
// than a feed model.
type ResolvedGreeks struct {
	Delta     decimal.Decimal
	Gamma     decimal.Decimal
	Heuristic bool
}

// ResolveGreeks returns the greeks for an option leg. When the quote carries
// model greeks they are used directly, clamped to delta in [-1, 1] and
// gamma >= 0. Otherwise a coarse moneyness heuristic stands in: in-the-money
// legs get |delta| 0.7, out-of-the-money legs 0.3 (puts negated), and gamma
// is a flat 0.01. The heuristic is an approximation, not a pricing model;
// an underlying price exactly at the strike takes the out-of-the-money
// branch.
func ResolveGreeks(q models.QuoteSnapshot, right models.Right, strike, underlyingPrice decimal.Decimal) ResolvedGreeks {
	if q.Greeks != nil {
		return ResolvedGreeks{
			Delta: clampDelta(q.Greeks.Delta),
			Gamma: decimal.Max(q.Greeks.Gamma, decimal.Zero),
		}
	}

	g := ResolvedGreeks{Gamma: heuristicGamma, Heuristic: true}
	switch right {
	case models.RightPut:
		if underlyingPrice.LessThan(strike) {
			g.Delta = deltaInTheMoney.Neg()
		} else {
			g.Delta = deltaOutOfMoney.Neg()
		}
	default:
		if underlyingPrice.GreaterThan(strike) {
			g.Delta = deltaInTheMoney
		} else {
			g.Delta = deltaOutOfMoney
		}
	}
	return g
}

func clampDelta(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(deltaLowerBound) {
		return deltaLowerBound
	}
	if d.GreaterThan(deltaUpperBound) {
		return deltaUpperBound
	}
	return d
}
