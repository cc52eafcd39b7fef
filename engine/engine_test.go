package engine

import (
	"errors"
	"testing"

	"exposureflow/models"
)

func TestComputeEmptyPositions(t *testing.T) {
	report, err := Compute(nil, quoteLookup(nil), models.AccountTotals{NetLiquidation: d("1000")})
	if !errors.Is(err, ErrNoPositions) {
		t.Fatalf("err = %v, want ErrNoPositions", err)
	}
	if report != nil {
		t.Fatal("no report must be produced for an empty position set")
	}
}

func TestComputeFullPass(t *testing.T) {
	positions := []models.Position{
		{Instrument: models.Stock("AAPL", "USD"), Quantity: d("100"), AvgCost: d("42")},
		{
			Instrument: models.Option("XYZ", "20260116", d("40"), models.RightCall, 100, "USD"),
			Quantity:   d("2"),
			AvgCost:    d("3"),
		},
	}
	quotes := map[string]models.QuoteSnapshot{
		"STK:AAPL":              {Last: d("50")},
		"STK:XYZ":               {Last: d("50")},
		"OPT:XYZ:20260116:C:40": {Last: d("10.5")},
	}
	totals := models.AccountTotals{
		Account:          "DU1234567",
		NetLiquidation:   d("60000"),
		GrossPositionVal: d("30000"),
	}

	report, err := Compute(positions, quoteLookup(quotes), totals)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if report.PassID == "" {
		t.Fatal("pass id not assigned")
	}
	if report.Account != "DU1234567" {
		t.Fatalf("account = %s", report.Account)
	}
	if len(report.Exposures) != 2 {
		t.Fatalf("exposures = %d, want 2", len(report.Exposures))
	}
	// sorted: AAPL before XYZ
	if report.Exposures[0].Symbol != "AAPL" || report.Exposures[1].Symbol != "XYZ" {
		t.Fatalf("ordering: %s, %s", report.Exposures[0].Symbol, report.Exposures[1].Symbol)
	}
	if !report.Metrics.TotalNotional.Equal(d("12000")) {
		t.Fatalf("total notional = %s, want 12000", report.Metrics.TotalNotional)
	}
	if !report.Metrics.NotionalLeverage.Equal(d("0.2")) {
		t.Fatalf("notional leverage = %s, want 0.2", report.Metrics.NotionalLeverage)
	}
	if report.Stats.Positions != 2 || report.Stats.Underlyings != 2 {
		t.Fatalf("stats: %+v", report.Stats)
	}
	if report.Stats.GreekFallbacks != 1 {
		t.Fatalf("greek fallbacks = %d, want 1", report.Stats.GreekFallbacks)
	}
}

func TestComputeFreshPassIDs(t *testing.T) {
	positions := []models.Position{
		{Instrument: models.Stock("AAPL", "USD"), Quantity: d("1"), AvgCost: d("1")},
	}

	first, err := Compute(positions, quoteLookup(nil), models.AccountTotals{})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	second, err := Compute(positions, quoteLookup(nil), models.AccountTotals{})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if first.PassID == second.PassID {
		t.Fatal("pass ids must be unique per pass")
	}
}
