package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PaperTotals mirrors the account level values of a paper account file.
type PaperTotals struct {
	ID               string  `yaml:"id"`
	Currency         string  `yaml:"currency"`
	NetLiquidation   float64 `yaml:"net_liquidation"`
	GrossPositionVal float64 `yaml:"gross_position_value"`
}

// PaperPosition is one holding row of a paper account file. Option rows
// carry expiry, strike, right and multiplier; equity rows only the symbol.
type PaperPosition struct {
	Symbol     string  `yaml:"symbol"`
	SecType    string  `yaml:"sec_type"`
	Expiry     string  `yaml:"expiry"`
	Strike     float64 `yaml:"strike"`
	Right      string  `yaml:"right"`
	Multiplier int     `yaml:"multiplier"`
	Quantity   float64 `yaml:"quantity"`
	AvgCost    float64 `yaml:"avg_cost"`
}

// PaperQuote is the scripted market data for one instrument. Zero prices
// are treated as absent, exercising the same fallback chain as live feeds.
// Delta and gamma are optional model greeks.
type PaperQuote struct {
	Symbol  string   `yaml:"symbol"`
	SecType string   `yaml:"sec_type"`
	Expiry  string   `yaml:"expiry"`
	Strike  float64  `yaml:"strike"`
	Right   string   `yaml:"right"`
	Last    float64  `yaml:"last"`
	Bid     float64  `yaml:"bid"`
	Ask     float64  `yaml:"ask"`
	Mark    float64  `yaml:"mark"`
	Delta   *float64 `yaml:"delta"`
	Gamma   *float64 `yaml:"gamma"`
}

// PaperChain describes the option chain of one underlying in a paper
// account file.
type PaperChain struct {
	Symbol      string    `yaml:"symbol"`
	Multiplier  int       `yaml:"multiplier"`
	Expirations []string  `yaml:"expirations"`
	Strikes     []float64 `yaml:"strikes"`
}

// PaperAccount is the full contents of a paper account file: totals,
// positions, scripted quotes and optional chain data.
type PaperAccount struct {
	Account   PaperTotals     `yaml:"account"`
	Positions []PaperPosition `yaml:"positions"`
	Quotes    []PaperQuote    `yaml:"quotes"`
	Chains    []PaperChain    `yaml:"chains"`
}

// LoadPaperAccount loads a paper account definition from the given path.
func LoadPaperAccount(path string) (*PaperAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read paper account file: %w", err)
	}
	var acct PaperAccount
	if err := yaml.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("failed to parse paper account file: %w", err)
	}
	for i, pos := range acct.Positions {
		if pos.Symbol == "" {
			return nil, fmt.Errorf("paper position %d has no symbol", i)
		}
		if pos.SecType != "STK" && pos.SecType != "OPT" {
			return nil, fmt.Errorf("paper position %d has invalid sec_type '%s'", i, pos.SecType)
		}
	}
	return &acct, nil
}
