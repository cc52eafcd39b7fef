package render

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency formats a decimal amount in the given ISO currency, e.g.
// "$12,000.00". An unknown or empty code falls back to USD so a table cell
// never renders raw.
func Currency(value decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		cur = money.GetCurrency(money.USD)
	}
	shifted := value.Shift(int32(cur.Fraction)).Round(0)
	return money.New(shifted.IntPart(), cur.Code).Display()
}

// Ratio formats a leverage ratio with the trailing multiplier mark, e.g.
// "0.20x".
func Ratio(value decimal.Decimal) string {
	return value.StringFixed(2) + "x"
}

// Percent formats a percentage column, e.g. "21.00%".
func Percent(value decimal.Decimal) string {
	return value.StringFixed(2) + "%"
}
