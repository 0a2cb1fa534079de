// Package weight converts cart lines into canonical kilograms for shipping
// fee calculation. Liquids are treated as water-density: 1 l = 1 kg.
package weight

import (
	"math"

	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/catalog"
)

// LineKg returns the physical weight contribution of one line in kilograms.
// Piece-unit lines contribute nothing unless an explicit per-unit weight
// override is set. A missing measurement degrades to zero, never an error.
func LineKg(l cart.Line) float64 {
	switch l.Unit {
	case catalog.UnitPiece:
		if l.UnitWeightKg > 0 {
			return l.UnitWeightKg * l.Quantity
		}
		return 0
	case catalog.UnitKilogram, catalog.UnitLiter:
		return l.Measurement * l.Quantity
	case catalog.UnitGram, catalog.UnitMilliliter:
		return (l.Measurement * l.Quantity) / 1000
	default:
		return 0
	}
}

// TotalKg returns the aggregate weight of all lines at full precision.
func TotalKg(lines []cart.Line) float64 {
	var total float64
	for _, l := range lines {
		total += LineKg(l)
	}
	return total
}

// DisplayKg rounds a weight to 2 decimal places for presentation. Wire
// payloads carry the full-precision value.
func DisplayKg(kg float64) float64 {
	return math.Round(kg*100) / 100
}
