package flow

import (
	"math"
	"strconv"
	"strings"
)

var currencySymbols = []string{"$", "€", "£", "¥", "₹", "USD", "EUR", "GBP", "JPY", "INR"}

// ParseMagnitude coerces a cell to a number. Accepts thousands separators,
// currency symbols, a trailing percent sign and accounting-style
// parentheses for negatives. Anything else, including NaN and infinities,
// reports false.
func ParseMagnitude(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
		negative = true
	}

	for _, symbol := range currencySymbols {
		s = strings.ReplaceAll(s, symbol, "")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")

	if negative {
		s = "-" + s
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// CoerceMagnitude is ParseMagnitude with failures mapped to zero
func CoerceMagnitude(raw string) float64 {
	v, _ := ParseMagnitude(raw)
	return v
}
