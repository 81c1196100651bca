package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Total is the sum of price x qty over every line.
func Total(c Cart) decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// MinorUnits converts a major-unit amount to the smallest currency unit,
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}
