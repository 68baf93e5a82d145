package helpers

import (
	"fmt"
	"math"
	"strings"
)

// FormatNumber formats a number with comma thousand separators and the given decimals
func FormatNumber(amount float64, decimals int) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.*f", decimals, amount)
	intPart, fracPart := str, ""
	if i := strings.IndexByte(str, '.'); i >= 0 {
		intPart, fracPart = str[:i], str[i:]
	}

	length := len(intPart)
	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (length-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteString(fracPart)

	if negative && strings.Trim(b.String(), "0.,") != "" {
		return "-" + b.String()
	}
	return b.String()
}

// FormatPercent formats a percentage value such as 12.5 as "12.50%"
func FormatPercent(value float64) string {
	return FormatNumber(value, 2) + "%"
}

// FormatRatio formats a ratio metric (profit factor, Sharpe) with two decimals
func FormatRatio(value float64) string {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return "n/a"
	}
	return FormatNumber(value, 2)
}
