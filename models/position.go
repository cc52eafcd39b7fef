package models

import (
	"github.com/shopspring/decimal"
)

// Position is a single holding reported by the brokerage account. Quantity
// is signed: negative values are short positions. AvgCost is the average
// acquisition cost per share or unit as reported upstream.
type Position struct {
	Instrument Instrument      `json:"instrument"`
	Quantity   decimal.Decimal `json:"quantity"`
	AvgCost    decimal.Decimal `json:"avg_cost"`
	Account    string          `json:"account,omitempty"`
}

// IsFlat reports whether the position quantity is zero. Flat rows show up
// in brokerage position feeds after a close and carry no exposure.
func (p Position) IsFlat() bool {
	return p.Quantity.IsZero()
}
