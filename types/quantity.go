package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a user-entered quantity or amount. Surrounding
// whitespace and thousands separators are ignored; anything else that is
// not a plain decimal number is an error.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("types: empty number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("types: parse %q: %w", s, err)
	}
	return d, nil
}

// ClampZero returns d, or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MaxOf returns the largest of ds, or zero for an empty list.
func MaxOf(ds ...decimal.Decimal) decimal.Decimal {
	if len(ds) == 0 {
		return decimal.Zero
	}
	return decimal.Max(ds[0], ds[1:]...)
}

// Sum adds ds.
func Sum(ds ...decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, ds...)
}

// FormatQuantity renders d without trailing zeros ("50", "2.5").
func FormatQuantity(d decimal.Decimal) string {
	return d.String()
}
