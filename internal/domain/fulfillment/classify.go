// Package fulfillment decides which fulfillment path a cart line takes:
// standard packaged goods or weight-variable fresh fish.
package fulfillment

import (
	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/catalog"
)

// FishCategoryName is the catalog category used by the structural fallback
// for legacy lines that predate explicit kind tagging.
const FishCategoryName = "Fresh Fish"

// Partition holds the cart split by fulfillment path. Regular and Fish are
// disjoint and their union is the whole cart, in cart order.
type Partition struct {
	Regular []cart.Line
	Fish    []cart.Line
}

// Classify returns the fulfillment kind for a line. A kind stamped at
// add-to-cart time is authoritative. For untagged legacy lines the match
// order is contractual:
//
//  1. explicit fish flag,
//  2. non-empty size-category list,
//  3. fish category name + kg unit + (no variant, or a kg variant).
//
// Everything else is standard.
func Classify(l cart.Line) cart.Kind {
	if l.Kind != cart.KindUnknown {
		return l.Kind
	}
	if l.IsFish {
		return cart.KindFish
	}
	if len(l.SizeCategories) > 0 {
		return cart.KindFish
	}
	if l.CategoryName == FishCategoryName && l.Unit == catalog.UnitKilogram &&
		(l.Variant == nil || l.Variant.Unit == catalog.UnitKilogram) {
		return cart.KindFish
	}
	return cart.KindStandard
}

// Split partitions lines by fulfillment kind, preserving cart order.
func Split(lines []cart.Line) Partition {
	var p Partition
	for _, l := range lines {
		if Classify(l) == cart.KindFish {
			p.Fish = append(p.Fish, l)
		} else {
			p.Regular = append(p.Regular, l)
		}
	}
	return p
}
