package chain

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"exposureflow/config"
	"exposureflow/models"
	"exposureflow/provider"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// stubBackend scripts chain parameters and quotes for browser tests.
type stubBackend struct {
	params models.ChainParams
	quotes map[string]models.QuoteSnapshot
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) ListPositions(ctx context.Context) ([]models.Position, error) {
	return nil, nil
}

func (s *stubBackend) GetQuote(ctx context.Context, inst models.Instrument) (models.QuoteSnapshot, error) {
	q, ok := s.quotes[inst.Key()]
	if !ok {
		return models.QuoteSnapshot{}, provider.ErrNoQuote
	}
	return q, nil
}

func (s *stubBackend) AccountTotals(ctx context.Context) (models.AccountTotals, error) {
	return models.AccountTotals{}, nil
}

func (s *stubBackend) ChainParams(ctx context.Context, symbol string) (models.ChainParams, error) {
	return s.params, nil
}

func (s *stubBackend) OptionContract(ctx context.Context, params models.ChainParams, expiry string, strike decimal.Decimal, right models.Right) (models.Instrument, error) {
	return models.Option(params.Symbol, expiry, strike, right, params.Multiplier, "USD"), nil
}

func browserConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Chain.MaxStrikes = 4
	cfg.Refresh.QuoteRateLimit.RequestsPerSecond = 1000
	cfg.Refresh.QuoteRateLimit.BurstSize = 100
	return cfg
}

func strikeLadder(values ...string) []decimal.Decimal {
	strikes := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		strikes = append(strikes, d(v))
	}
	return strikes
}

func TestNewBrowserRequiresChainSource(t *testing.T) {
	// embedding hides the chain methods behind the plain Provider interface
	bare := struct{ provider.Provider }{&stubBackend{}}
	if _, err := NewBrowser(browserConfig(), bare); err == nil {
		t.Fatal("expected error for backend without chain data")
	}
}

func TestWindowStrikesCentersOnSpot(t *testing.T) {
	ladder := strikeLadder("10", "20", "30", "40", "50", "60", "70", "80")

	// first strike >= 45 is 50; window of 4 starts two below it
	window := windowStrikes(ladder, d("45"), 4)
	want := []string{"30", "40", "50", "60"}
	if len(window) != len(want) {
		t.Fatalf("window = %v, want %v", window, want)
	}
	for i, w := range want {
		if !window[i].Equal(d(w)) {
			t.Fatalf("window[%d] = %s, want %s", i, window[i], w)
		}
	}
}

func TestWindowStrikesClampsToLadder(t *testing.T) {
	ladder := strikeLadder("10", "20", "30", "40", "50", "60")

	low := windowStrikes(ladder, d("5"), 4)
	if !low[0].Equal(d("10")) || len(low) != 4 {
		t.Fatalf("low window = %v", low)
	}

	high := windowStrikes(ladder, d("100"), 4)
	if len(high) != 2 || !high[0].Equal(d("50")) {
		t.Fatalf("high window = %v", high)
	}
}

func TestWindowStrikesNoSpot(t *testing.T) {
	ladder := strikeLadder("10", "20", "30", "40", "50", "60", "70", "80")

	// zero spot anchors on the ladder's middle strike
	window := windowStrikes(ladder, decimal.Zero, 4)
	if len(window) != 4 || !window[0].Equal(d("30")) {
		t.Fatalf("window = %v", window)
	}
}

func TestWindowStrikesShortLadder(t *testing.T) {
	ladder := strikeLadder("40", "50")
	window := windowStrikes(ladder, d("45"), 10)
	if len(window) != 2 {
		t.Fatalf("window = %v", window)
	}
}

func TestViewBuildsRows(t *testing.T) {
	backend := &stubBackend{
		params: models.ChainParams{
			Symbol:      "XYZ",
			Expirations: []string{"20260116", "20260220"},
			Strikes:     strikeLadder("30", "40", "50", "60", "70", "80"),
			Multiplier:  100,
		},
		quotes: map[string]models.QuoteSnapshot{
			"STK:XYZ":               {Last: d("50")},
			"OPT:XYZ:20260116:C:40": {Bid: d("10"), Ask: d("11"), Last: d("10.5")},
			"OPT:XYZ:20260116:P:40": {Last: d("0.8"), Greeks: &models.Greeks{Delta: d("-0.12"), Gamma: d("0.02")}},
		},
	}

	browser, err := NewBrowser(browserConfig(), backend)
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}

	view, err := browser.View(context.Background(), "XYZ", "20260116")
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	if !view.Spot.Equal(d("50")) || view.SpotBasis != models.PriceSourceLast {
		t.Fatalf("spot = %s (%s)", view.Spot, view.SpotBasis)
	}
	if len(view.Calls) != 4 || len(view.Puts) != 4 {
		t.Fatalf("rows: %d calls, %d puts, want 4 each", len(view.Calls), len(view.Puts))
	}

	call := findRow(t, view.Calls, "40")
	if call.PriceSource != models.PriceSourceLast || !call.Price.Equal(d("10.5")) {
		t.Fatalf("call price = %s (%s)", call.Price, call.PriceSource)
	}
	// spot 50 > strike 40, no model greeks: heuristic in-the-money call
	if !call.Heuristic || !call.Delta.Equal(d("0.7")) || !call.Gamma.Equal(d("0.01")) {
		t.Fatalf("call greeks = %+v", call)
	}
	// 10.5 / 50 * 100
	if !call.PctOfStock.Equal(d("21")) {
		t.Fatalf("pct of stock = %s, want 21", call.PctOfStock)
	}
	// premium over intrinsic: 10.5 - (50 - 40)
	if !call.DiffFromStock.Equal(d("0.5")) {
		t.Fatalf("diff from stock = %s, want 0.5", call.DiffFromStock)
	}

	put := findRow(t, view.Puts, "40")
	if put.Heuristic {
		t.Fatalf("put should use model greeks: %+v", put)
	}
	if !put.Delta.Equal(d("-0.12")) || !put.Gamma.Equal(d("0.02")) {
		t.Fatalf("put greeks = %+v", put)
	}
	// out of the money put carries no intrinsic value
	if !put.DiffFromStock.Equal(d("0.8")) {
		t.Fatalf("put diff = %s, want 0.8", put.DiffFromStock)
	}
}

func TestViewMissingQuotesDegrade(t *testing.T) {
	backend := &stubBackend{
		params: models.ChainParams{
			Symbol:      "XYZ",
			Expirations: []string{"20260116"},
			Strikes:     strikeLadder("40", "50"),
			Multiplier:  100,
		},
		quotes: map[string]models.QuoteSnapshot{
			"STK:XYZ": {Last: d("45")},
		},
	}

	browser, err := NewBrowser(browserConfig(), backend)
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}

	view, err := browser.View(context.Background(), "XYZ", "20260116")
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	// every option row falls through to the placeholder tier
	for _, row := range append(view.Calls, view.Puts...) {
		if row.PriceSource != models.PriceSourcePlaceholder {
			t.Fatalf("row %s%s source = %s", row.Strike, row.Right, row.PriceSource)
		}
		if !row.Heuristic {
			t.Fatalf("row %s%s should carry heuristic greeks", row.Strike, row.Right)
		}
	}
}

func TestViewRejectsUnknownExpiry(t *testing.T) {
	backend := &stubBackend{
		params: models.ChainParams{
			Symbol:      "XYZ",
			Expirations: []string{"20260116"},
			Strikes:     strikeLadder("40"),
		},
	}

	browser, err := NewBrowser(browserConfig(), backend)
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	if _, err := browser.View(context.Background(), "XYZ", "20991231"); err == nil {
		t.Fatal("expected error for unlisted expiry")
	}
}

func findRow(t *testing.T, rows []models.ChainRow, strike string) models.ChainRow {
	t.Helper()
	for _, row := range rows {
		if row.Strike.Equal(d(strike)) {
			return row
		}
	}
	t.Fatalf("no row for strike %s", strike)
	return models.ChainRow{}
}
