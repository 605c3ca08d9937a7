// Package money holds decimal helpers shared by sizing, settlement and reporting.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultFiatDecimals is the minimal increment used for typical fiat currencies.
const DefaultFiatDecimals int32 = 2

var half = decimal.NewFromFloat(0.5)

// RoundHalfUp rounds d to places decimals, ties toward positive infinity.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	if places < 0 {
		places = 0
	}
	return d.Shift(places).Add(half).Floor().Shift(-places)
}

// RoundFiat rounds a fiat amount to its minimal increment. Negative places
// select DefaultFiatDecimals.
func RoundFiat(d decimal.Decimal, places int32) decimal.Decimal {
	if places < 0 {
		places = DefaultFiatDecimals
	}
	return RoundHalfUp(d, places)
}

// Parse reads a decimal from a trimmed string; empty input is an error.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty decimal")
	}
	return decimal.NewFromString(raw)
}

// ParseOrZero is Parse for exchange payloads where a malformed field means zero.
func ParseOrZero(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Div divides a by b, returning (zero, false) when b is zero.
func Div(a, b decimal.Decimal) (decimal.Decimal, bool) {
	if b.IsZero() {
		return decimal.Zero, false
	}
	return a.DivRound(b, 16), true
}

// Clamp limits d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Format renders d with exactly places decimals.
func Format(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

// FormatAmount renders an amount followed by its currency, e.g. "100.00 CZK".
func FormatAmount(d decimal.Decimal, places int32, currency string) string {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return Format(d, places)
	}
	return Format(d, places) + " " + currency
}

// FormatCrypto trims trailing zeros so small quantities stay readable.
func FormatCrypto(d decimal.Decimal, asset string) string {
	s := d.Truncate(8).String()
	if asset = strings.TrimSpace(asset); asset != "" {
		return s + " " + asset
	}
	return s
}
