package models

import (
	"github.com/shopspring/decimal"
)

// AccountTotals are the account level values reported by the brokerage.
// Values the upstream did not supply are zero; a zero or negative net
// liquidation value marks the totals as degenerate for ratio purposes.
type AccountTotals struct {
	Account          string          `json:"account,omitempty"`
	NetLiquidation   decimal.Decimal `json:"net_liquidation"`
	GrossPositionVal decimal.Decimal `json:"gross_position_value"`
	Currency         string          `json:"currency,omitempty"`
}

// Degenerate reports whether the totals cannot support leverage ratios.
func (t AccountTotals) Degenerate() bool {
	return !t.NetLiquidation.IsPositive()
}
