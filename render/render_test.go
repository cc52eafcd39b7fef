package render

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exposureflow/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleReport() *models.ExposureReport {
	return &models.ExposureReport{
		PassID:    "test-pass",
		Account:   "DU1234567",
		Timestamp: time.Now().UTC(),
		Exposures: []models.UnderlyingExposure{{
			Symbol:            "XYZ",
			StockShareCount:   d("100"),
			StockMarketValue:  d("5000"),
			OptionDeltaShares: d("140"),
			OptionActualValue: d("2100"),
			UnderlyingPrice:   d("50"),
			PriceSource:       models.PriceSourceLast,
		}},
		Metrics: models.PortfolioMetrics{
			TotalNotional:    d("12000"),
			NetLiquidation:   d("60000"),
			GrossPositionVal: d("30000"),
			NotionalLeverage: d("0.2"),
			StandardLeverage: d("0.5"),
		},
	}
}

func TestCurrencyFormatting(t *testing.T) {
	cases := []struct {
		value    string
		currency string
		want     string
	}{
		{"12000", "USD", "$12,000.00"},
		{"50", "USD", "$50.00"},
		{"0.5", "USD", "$0.50"},
		{"-2100", "USD", "-$2,100.00"},
		{"1234.567", "USD", "$1,234.57"},
	}
	for _, c := range cases {
		if got := Currency(d(c.value), c.currency); got != c.want {
			t.Errorf("Currency(%s, %s) = %q, want %q", c.value, c.currency, got, c.want)
		}
	}
}

func TestCurrencyUnknownCodeFallsBack(t *testing.T) {
	if got := Currency(d("5"), ""); got != "$5.00" {
		t.Fatalf("Currency with empty code = %q", got)
	}
}

func TestExposureMarkdown(t *testing.T) {
	out := ExposureMarkdown(sampleReport(), "USD")

	for _, want := range []string{
		"| XYZ |",
		"$5,000.00",
		"| 140 |",
		// 140 delta shares over the standard multiplier
		"| 1.40 |",
		"$12,000.00",
		"| last |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposure table missing %q:\n%s", want, out)
		}
	}
}

func TestExposureMarkdownDegradedMarker(t *testing.T) {
	report := sampleReport()
	report.Exposures[0].PriceSource = models.PriceSourceAvgCost
	report.Exposures[0].Degraded = true
	report.Exposures[0].HeuristicGreeks = true

	out := ExposureMarkdown(report, "USD")
	if !strings.Contains(out, "avg_cost (degraded) (approx Δ)") {
		t.Fatalf("degraded markers missing:\n%s", out)
	}
}

func TestExposureMarkdownEmpty(t *testing.T) {
	out := ExposureMarkdown(nil, "USD")
	if !strings.Contains(out, "No positions.") {
		t.Fatalf("empty report rendering:\n%s", out)
	}
}

func TestSummaryMarkdown(t *testing.T) {
	out := SummaryMarkdown(sampleReport().Metrics, "USD")

	for _, want := range []string{
		"| Net Liquidation Value | $60,000.00 |",
		"| NGAV (Notional Gross Asset Value) | $12,000.00 |",
		"| NLR (Notional Leverage Ratio) | 0.20x |",
		"| Standard Leverage Ratio | 0.50x |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "zeroed") {
		t.Errorf("healthy totals should not warn:\n%s", out)
	}
}

func TestSummaryMarkdownDegenerate(t *testing.T) {
	metrics := models.PortfolioMetrics{DegenerateTotals: true}
	out := SummaryMarkdown(metrics, "USD")
	if !strings.Contains(out, "zeroed") {
		t.Fatalf("degenerate warning missing:\n%s", out)
	}
}

func TestChainMarkdown(t *testing.T) {
	view := &models.ChainView{
		Symbol:    "XYZ",
		Expiry:    "20260116",
		Spot:      d("50"),
		SpotBasis: models.PriceSourceLast,
		Calls: []models.ChainRow{{
			Strike:        d("40"),
			Right:         models.RightCall,
			Bid:           d("10"),
			Ask:           d("11"),
			Last:          d("10.5"),
			Price:         d("10.5"),
			PriceSource:   models.PriceSourceLast,
			Delta:         d("0.7"),
			Gamma:         d("0.01"),
			Heuristic:     true,
			PctOfStock:    d("21"),
			DiffFromStock: d("0.5"),
		}},
		Puts: []models.ChainRow{{
			Strike:      d("40"),
			Right:       models.RightPut,
			Price:       d("100"),
			PriceSource: models.PriceSourcePlaceholder,
			Delta:       d("-0.3"),
			Gamma:       d("0.01"),
			Heuristic:   true,
		}},
	}

	out := ChainMarkdown(view, "USD")
	for _, want := range []string{
		"# Option Chain XYZ 20260116",
		"Spot: $50.00 (last)",
		"## Calls",
		"0.70*",
		"21.00%",
		// missing put quotes render as dashes
		"| 40.00 | - | - | - |",
		"-0.30*",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("chain rendering missing %q:\n%s", want, out)
		}
	}
}
