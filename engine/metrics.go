package engine

import (
	"github.com/shopspring/decimal"

	"exposureflow/models"
)

// ComputeMetrics derives the portfolio level metrics from the aggregated
// exposures and the account totals. Total notional is the sum of the
// per-underlying notional values (NGAV). Both leverage ratios divide by net
// liquidation value and are zero when NLV is not strictly positive; the
// degenerate flag marks that case so callers can label the output instead
// of failing.
func ComputeMetrics(exposures []models.UnderlyingExposure, totals models.AccountTotals) models.PortfolioMetrics {
	total := decimal.Zero
	for _, e := range exposures {
		total = total.Add(e.NotionalValue())
	}

	m := models.PortfolioMetrics{
		TotalNotional:    total,
		NetLiquidation:   totals.NetLiquidation,
		GrossPositionVal: totals.GrossPositionVal,
		NotionalLeverage: decimal.Zero,
		StandardLeverage: decimal.Zero,
	}

	if totals.Degenerate() {
		m.DegenerateTotals = true
		return m
	}

	m.NotionalLeverage = total.Div(totals.NetLiquidation)
	m.StandardLeverage = totals.GrossPositionVal.Div(totals.NetLiquidation)
	return m
}
