// Package mathx holds the small generic numeric helpers config and the
// board drivers share.
package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round rounds v half away from zero to the given number of decimals.
func Round[T constraints.Float](v T, places int) T {
	p := math.Pow10(places)
	return T(math.Round(float64(v)*p) / p)
}
