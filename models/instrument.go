package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SecType identifies the security type of an instrument using the
// brokerage's own codes.
type SecType string

const (
	SecTypeStock  SecType = "STK"
	SecTypeOption SecType = "OPT"
)

// Right identifies an option right.
type Right string

const (
	RightCall Right = "C"
	RightPut  Right = "P"
)

// DefaultMultiplier is the contract multiplier assumed when an option
// instrument does not carry one.
const DefaultMultiplier = 100

// Instrument describes a tradeable contract. Equity instruments carry only
// the symbol; option instruments additionally carry expiry, strike, right
// and multiplier. ConID is the upstream contract identifier when the
// provider assigns one, UndConID the identifier of the underlying contract.
type Instrument struct {
	Symbol      string          `json:"symbol"`
	SecType     SecType         `json:"sec_type"`
	Expiry      string          `json:"expiry,omitempty"`
	Strike      decimal.Decimal `json:"strike,omitempty"`
	Right       Right           `json:"right,omitempty"`
	Multiplier  int             `json:"multiplier,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	LocalSymbol string          `json:"local_symbol,omitempty"`
	ConID       int64           `json:"conid,omitempty"`
	UndConID    int64           `json:"und_conid,omitempty"`
}

// Stock builds an equity instrument for the given symbol.
func Stock(symbol, currency string) Instrument {
	return Instrument{Symbol: symbol, SecType: SecTypeStock, Currency: currency}
}

// Option builds an option instrument.
func Option(symbol, expiry string, strike decimal.Decimal, right Right, multiplier int, currency string) Instrument {
	return Instrument{
		Symbol:     symbol,
		SecType:    SecTypeOption,
		Expiry:     expiry,
		Strike:     strike,
		Right:      right,
		Multiplier: multiplier,
		Currency:   currency,
	}
}

// IsOption reports whether the instrument is an option contract.
func (i Instrument) IsOption() bool {
	return i.SecType == SecTypeOption
}

// IsEquity reports whether the instrument is an equity contract.
func (i Instrument) IsEquity() bool {
	return i.SecType == SecTypeStock
}

// EffectiveMultiplier returns the contract multiplier as a decimal,
// substituting DefaultMultiplier when none is set.
func (i Instrument) EffectiveMultiplier() decimal.Decimal {
	if i.Multiplier > 0 {
		return decimal.NewFromInt(int64(i.Multiplier))
	}
	return decimal.NewFromInt(DefaultMultiplier)
}

// Underlying returns the synthesized equity instrument of this contract's
// underlying. For equities it is the instrument itself stripped to its
// equity identity.
func (i Instrument) Underlying() Instrument {
	und := Stock(i.Symbol, i.Currency)
	if i.IsOption() {
		und.ConID = i.UndConID
	} else {
		und.ConID = i.ConID
	}
	return und
}

// Key returns a stable identifier used to index quotes and cache entries,
// e.g. "STK:AAPL" or "OPT:AAPL:20260116:C:150".
func (i Instrument) Key() string {
	if i.IsOption() {
		return fmt.Sprintf("%s:%s:%s:%s:%s", i.SecType, i.Symbol, i.Expiry, i.Right, i.Strike.String())
	}
	return fmt.Sprintf("%s:%s", i.SecType, i.Symbol)
}

// Describe renders a human readable contract description for logs and
// tables, e.g. "AAPL 20260116 150C".
func (i Instrument) Describe() string {
	if i.IsOption() {
		return fmt.Sprintf("%s %s %s%s", i.Symbol, i.Expiry, i.Strike.String(), i.Right)
	}
	return i.Symbol
}
