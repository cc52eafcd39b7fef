// Package render turns exposure reports and chain views into markdown
// tables for the CLI. Currency cells are formatted per the account
// currency; numeric precision beyond display rounding stays in the report.
package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"exposureflow/models"
)

// ExposureMarkdown renders the per-underlying exposure table. Delta weighted
// option shares are also shown as contract equivalents (shares over the
// standard multiplier). Degraded rows are marked so a reader can tell a
// fallback price from a live one.
func ExposureMarkdown(report *models.ExposureReport, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Exposure by Underlying\n\n")
	if report == nil || len(report.Exposures) == 0 {
		fmt.Fprintln(&b, "No positions.")
		return b.String()
	}

	fmt.Fprintln(&b, "| Symbol | Stock Count | Stock Value | Opt Δ-Shares | Opt Contracts | Opt Actual Value | Underlying Price | Notional | Source |")
	fmt.Fprintln(&b, "|:---|---:|---:|---:|---:|---:|---:|---:|:---|")

	contractDivisor := decimal.NewFromInt(models.DefaultMultiplier)
	for _, e := range report.Exposures {
		source := string(e.PriceSource)
		if e.Degraded {
			source += " (degraded)"
		}
		if e.HeuristicGreeks {
			source += " (approx Δ)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			e.Symbol,
			e.StockShareCount.StringFixed(0),
			Currency(e.StockMarketValue, currency),
			e.OptionDeltaShares.StringFixed(0),
			e.OptionDeltaShares.Div(contractDivisor).StringFixed(2),
			Currency(e.OptionActualValue, currency),
			Currency(e.UnderlyingPrice, currency),
			Currency(e.NotionalValue(), currency),
			source,
		)
	}

	fmt.Fprintf(&b, "\nTotal notional: %s across %d underlyings\n",
		Currency(report.Metrics.TotalNotional, currency), len(report.Exposures))
	return b.String()
}

// SummaryMarkdown renders the account level metrics table: net liquidation
// value, gross position value, notional gross account value and the two
// leverage ratios.
func SummaryMarkdown(metrics models.PortfolioMetrics, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Account Summary\n\n")
	fmt.Fprintln(&b, "| Metric | Value |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Net Liquidation Value | %s |\n", Currency(metrics.NetLiquidation, currency))
	fmt.Fprintf(&b, "| Gross Position Value | %s |\n", Currency(metrics.GrossPositionVal, currency))
	fmt.Fprintf(&b, "| NGAV (Notional Gross Asset Value) | %s |\n", Currency(metrics.TotalNotional, currency))
	fmt.Fprintf(&b, "| NLR (Notional Leverage Ratio) | %s |\n", Ratio(metrics.NotionalLeverage))
	fmt.Fprintf(&b, "| Standard Leverage Ratio | %s |\n", Ratio(metrics.StandardLeverage))
	if metrics.DegenerateTotals {
		fmt.Fprintln(&b, "\nLeverage ratios zeroed: net liquidation value is not positive.")
	}
	return b.String()
}

// ChainMarkdown renders the call and put tables of a chain view.
func ChainMarkdown(view *models.ChainView, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Option Chain %s %s\n\n", view.Symbol, view.Expiry)
	fmt.Fprintf(&b, "Spot: %s (%s)\n\n", Currency(view.Spot, currency), view.SpotBasis)

	writeChainSection(&b, "Calls", view.Calls, currency)
	writeChainSection(&b, "Puts", view.Puts, currency)
	return b.String()
}

func writeChainSection(b *strings.Builder, title string, rows []models.ChainRow, currency string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(rows) == 0 {
		fmt.Fprintln(b, "No strikes.")
		fmt.Fprintln(b)
		return
	}

	fmt.Fprintln(b, "| Strike | Bid | Ask | Last | Price | Delta | Gamma | Pct of Stock | Diff from Stock |")
	fmt.Fprintln(b, "|---:|---:|---:|---:|---:|---:|---:|---:|---:|")
	for _, row := range rows {
		delta := row.Delta.StringFixed(2)
		if row.Heuristic {
			delta += "*"
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			row.Strike.StringFixed(2),
			priceCell(row.Bid),
			priceCell(row.Ask),
			priceCell(row.Last),
			row.Price.StringFixed(2),
			delta,
			row.Gamma.StringFixed(2),
			Percent(row.PctOfStock),
			row.DiffFromStock.StringFixed(2),
		)
	}
	fmt.Fprintln(b, "\n\\* heuristic greeks (no model data)")
	fmt.Fprintln(b)
}

// priceCell renders an optional quoted price; absent quotes show a dash.
func priceCell(value decimal.Decimal) string {
	if !value.IsPositive() {
		return "-"
	}
	return value.StringFixed(2)
}
