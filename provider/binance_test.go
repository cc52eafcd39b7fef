package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"exposureflow/config"
	"exposureflow/models"
)

func binanceConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			Backend: config.BackendBinance,
			Binance: config.BinanceConfig{
				APIKey:     "test-key",
				APISecret:  "test-secret",
				QuoteAsset: "USDT",
			},
		},
	}
}

func newBinanceServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v3/account", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"balances": []map[string]string{
				{"asset": "BTC", "free": "1.5", "locked": "0"},
				{"asset": "ETH", "free": "10", "locked": "2"},
				{"asset": "USDT", "free": "5000", "locked": "0"},
				{"asset": "DUST", "free": "0", "locked": "0"},
			},
		})
	})

	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		all := []map[string]string{
			{"symbol": "BTCUSDT", "price": "60000"},
			{"symbol": "ETHUSDT", "price": "3000"},
		}
		if symbol := r.URL.Query().Get("symbol"); symbol != "" {
			for _, p := range all {
				if p["symbol"] == symbol {
					json.NewEncoder(w).Encode([]map[string]string{p})
					return
				}
			}
		}
		json.NewEncoder(w).Encode(all)
	})

	mux.HandleFunc("/api/v3/ticker/bookTicker", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"symbol": "BTCUSDT", "bidPrice": "59990", "bidQty": "1", "askPrice": "60010", "askQty": "1"},
		})
	})

	mux.HandleFunc("/api/v3/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})

	return httptest.NewServer(mux)
}

func newTestBinance(t *testing.T, baseURL string) *Binance {
	t.Helper()
	b := NewBinance(binanceConfig())
	b.client.BaseURL = baseURL
	return b
}

func TestBinanceListPositions(t *testing.T) {
	srv := newBinanceServer(t)
	defer srv.Close()

	b := newTestBinance(t, srv.URL)
	positions, err := b.ListPositions(context.Background())
	if err != nil {
		t.Fatalf("ListPositions failed: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions (cash and dust skipped), got %d", len(positions))
	}

	btc := positions[0]
	if btc.Instrument.Symbol != "BTCUSDT" || !btc.Instrument.IsEquity() {
		t.Errorf("unexpected instrument: %+v", btc.Instrument)
	}
	if !btc.Quantity.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("expected quantity 1.5, got %s", btc.Quantity)
	}

	eth := positions[1]
	if !eth.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Errorf("expected free+locked quantity 12, got %s", eth.Quantity)
	}
}

func TestBinanceGetQuote(t *testing.T) {
	srv := newBinanceServer(t)
	defer srv.Close()

	b := newTestBinance(t, srv.URL)
	snapshot, err := b.GetQuote(context.Background(), models.Stock("BTCUSDT", "USDT"))
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if !snapshot.Last.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("expected last 60000, got %s", snapshot.Last)
	}
	if !snapshot.Bid.Equal(decimal.NewFromInt(59990)) || !snapshot.Ask.Equal(decimal.NewFromInt(60010)) {
		t.Errorf("unexpected book: bid %s ask %s", snapshot.Bid, snapshot.Ask)
	}
	if snapshot.Greeks != nil {
		t.Error("spot quote should not carry greeks")
	}
}

func TestBinanceAccountTotals(t *testing.T) {
	srv := newBinanceServer(t)
	defer srv.Close()

	b := newTestBinance(t, srv.URL)
	totals, err := b.AccountTotals(context.Background())
	if err != nil {
		t.Fatalf("AccountTotals failed: %v", err)
	}

	// 1.5 BTC * 60000 + 12 ETH * 3000 + 5000 USDT cash
	if !totals.NetLiquidation.Equal(decimal.NewFromInt(131000)) {
		t.Errorf("expected net liquidation 131000, got %s", totals.NetLiquidation)
	}
	// cash does not count toward gross exposure
	if !totals.GrossPositionVal.Equal(decimal.NewFromInt(126000)) {
		t.Errorf("expected gross position value 126000, got %s", totals.GrossPositionVal)
	}
	if totals.Currency != "USDT" {
		t.Errorf("expected USDT, got %s", totals.Currency)
	}
}

func TestBinancePing(t *testing.T) {
	srv := newBinanceServer(t)
	defer srv.Close()

	b := newTestBinance(t, srv.URL)
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestBinanceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1000,"msg":"down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := newTestBinance(t, srv.URL)
	if _, err := b.ListPositions(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
