package broker

import "github.com/shopspring/decimal"

// FormatBaseSize renders a base size with at most 8 decimal places, the
// precision perp venues accept for contract quantities.
func FormatBaseSize(size float64) string {
	return decimal.NewFromFloat(size).Round(8).String()
}

// FormatLimitPrice renders a limit price with at most 2 decimal places.
func FormatLimitPrice(price float64) string {
	return decimal.NewFromFloat(price).Round(2).String()
}

// RoundBaseSize truncates noise beyond 8 decimal places from a computed
// position size.
func RoundBaseSize(size float64) float64 {
	f, _ := decimal.NewFromFloat(size).Round(8).Float64()
	return f
}
