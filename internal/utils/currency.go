package utils

import (
	"fmt"
	"strings"
)

// FormatAmount renders an amount for user-facing messages, with thousands
// separators and two decimal places, e.g. 1234567.5 -> "1,234,567.50".
func FormatAmount(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}

	s := fmt.Sprintf("%.2f", amount)
	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := b.String() + "." + fracPart
	if neg {
		return "-" + out
	}
	return out
}

// FormatCurrency prefixes a formatted amount with a currency code
func FormatCurrency(currency string, amount float64) string {
	if currency == "" {
		return FormatAmount(amount)
	}
	return currency + " " + FormatAmount(amount)
}
