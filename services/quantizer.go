package services

import (
	"math"
	"strconv"

	"grocery-price-compare/models"
)

// sizeTolerance is the largest relative distance at which a raw quantity is
// snapped to a canonical package size.
const sizeTolerance = 0.15

var canonicalSizes = map[models.Unit][]float64{
	models.UnitLiter:    {0.25, 0.33, 0.5, 1, 1.5, 2, 3, 5},
	models.UnitKilogram: {0.1, 0.2, 0.25, 0.5, 1, 1.5, 2, 2.5, 5},
}

// QuantizeSize snaps quantity to the nearest canonical size of unit when the
// absolute difference is strictly below 15% of quantity. Anything else,
// including unknown units, passes through unchanged.
func QuantizeSize(quantity float64, unit models.Unit) float64 {
	sizes, ok := canonicalSizes[unit]
	if !ok || quantity <= 0 {
		return quantity
	}

	best := quantity
	bestDiff := math.Inf(1)
	for _, size := range sizes {
		diff := math.Abs(size - quantity)
		if diff < sizeTolerance*quantity && diff < bestDiff {
			best, bestDiff = size, diff
		}
	}
	return best
}

// formatSize renders a size for use inside a match key: at most four
// decimals, no trailing zeros ("1", "0.5", "0.33").
func formatSize(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
