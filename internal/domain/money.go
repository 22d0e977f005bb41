package domain

import "math"

// RoundToCents rounds a monetary amount to two decimal places, half away from
// zero. Proration sums are rounded exactly once, at the end of the
// computation, never on intermediate daily rates.
func RoundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}
