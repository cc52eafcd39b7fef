package config

import (
	"os"
	"testing"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `exposureflow:
  name: "TestApp"
  version: "1.0"
provider:
  backend: paper
  paper:
    file: "paper.yml"
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Exposureflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Exposureflow.Name)
	}
	if cfg.Provider.Backend != BackendPaper {
		t.Errorf("unexpected backend: %s", cfg.Provider.Backend)
	}
	if cfg.Refresh.IntervalMs != 30000 {
		t.Errorf("unexpected refresh interval default: %d", cfg.Refresh.IntervalMs)
	}
	if cfg.Refresh.QuoteRateLimit.RequestsPerSecond != 5 {
		t.Errorf("unexpected rate limit default: %d", cfg.Refresh.QuoteRateLimit.RequestsPerSecond)
	}
	if cfg.Chain.MaxStrikes != 10 {
		t.Errorf("unexpected max strikes default: %d", cfg.Chain.MaxStrikes)
	}
	if !cfg.Metrics.PassStats {
		t.Error("pass stats metrics should default to enabled")
	}
	if cfg.Dashboard.Address != "0.0.0.0:8750" {
		t.Errorf("unexpected dashboard address default: %s", cfg.Dashboard.Address)
	}
}

func TestLoadConfigInvalidBackend(t *testing.T) {
	content := `exposureflow:
  name: "TestApp"
  version: "1.0"
provider:
  backend: etrade
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	defer os.Remove(f.Name())

	if _, err := LoadConfig(f.Name()); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	t.Setenv("IB_GATEWAY_URL", "https://gateway:9999/v1/api")
	t.Setenv("IB_ACCOUNT_ID", "U7654321")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Provider.Ibgw.BaseURL != "https://gateway:9999/v1/api" {
		t.Errorf("env override not applied to base url: %s", cfg.Provider.Ibgw.BaseURL)
	}
	if cfg.Provider.Ibgw.AccountID != "U7654321" {
		t.Errorf("env override not applied to account id: %s", cfg.Provider.Ibgw.AccountID)
	}
}

func TestLoadPaperAccount(t *testing.T) {
	content := `account:
  id: "PAPER001"
  currency: "USD"
  net_liquidation: 60000
  gross_position_value: 30000
positions:
- symbol: "AAPL"
  sec_type: STK
  quantity: 100
  avg_cost: 42
- symbol: "XYZ"
  sec_type: OPT
  expiry: "20260116"
  strike: 40
  right: C
  multiplier: 100
  quantity: 2
  avg_cost: 3
quotes:
- symbol: "AAPL"
  sec_type: STK
  last: 50
- symbol: "XYZ"
  sec_type: OPT
  expiry: "20260116"
  strike: 40
  right: C
  last: 10.5
  delta: 0.65
`
	f, err := os.CreateTemp("", "paper-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	defer os.Remove(f.Name())

	acct, err := LoadPaperAccount(f.Name())
	if err != nil {
		t.Fatalf("LoadPaperAccount failed: %v", err)
	}
	if acct.Account.ID != "PAPER001" {
		t.Errorf("unexpected account id: %s", acct.Account.ID)
	}
	if acct.Account.NetLiquidation != 60000 {
		t.Errorf("unexpected net liquidation: %f", acct.Account.NetLiquidation)
	}
	if len(acct.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(acct.Positions))
	}
	if acct.Positions[1].Strike != 40 || acct.Positions[1].Right != "C" {
		t.Errorf("unexpected option position: %+v", acct.Positions[1])
	}
	if len(acct.Quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(acct.Quotes))
	}
	if acct.Quotes[1].Delta == nil || *acct.Quotes[1].Delta != 0.65 {
		t.Errorf("expected model delta 0.65, got %v", acct.Quotes[1].Delta)
	}
	if acct.Quotes[1].Gamma != nil {
		t.Errorf("gamma should be absent, got %v", *acct.Quotes[1].Gamma)
	}
}

func TestLoadPaperAccountInvalidSecType(t *testing.T) {
	content := `positions:
- symbol: "AAPL"
  sec_type: FUT
  quantity: 1
`
	f, err := os.CreateTemp("", "paper-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	defer os.Remove(f.Name())

	if _, err := LoadPaperAccount(f.Name()); err == nil {
		t.Fatal("expected error for unsupported sec_type")
	}
}
