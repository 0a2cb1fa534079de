package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Unit is the selling unit of a product.
type Unit string

const (
	UnitPiece      Unit = "pcs"
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitLiter      Unit = "l"
	UnitMilliliter Unit = "ml"
)

// MinIncrement returns the smallest purchasable quantity step for the unit.
// Unknown units fall back to whole pieces.
func (u Unit) MinIncrement() float64 {
	switch u {
	case UnitKilogram, UnitLiter:
		return 0.25
	case UnitGram, UnitMilliliter:
		return 100
	default:
		return 1
	}
}

// Valid reports whether u is one of the supported selling units.
func (u Unit) Valid() bool {
	switch u {
	case UnitPiece, UnitKilogram, UnitGram, UnitLiter, UnitMilliliter:
		return true
	}
	return false
}

// Product is a catalog item as snapshotted at add-to-cart time. Prices and
// stock are point-in-time values; the backend revalidates at placement.
type Product struct {
	ID             string
	Name           string
	Price          decimal.Decimal
	Unit           Unit
	Measurement    float64 // physical quantity per unit, in Unit terms
	UnitWeightKg   float64 // optional explicit weight for pcs items, 0 when unknown
	Stock          float64 // maximum purchasable quantity
	CategoryName   string
	IsFish         bool
	Variants       []Variant
	SizeCategories []SizeCategory
}

// Variant is a priced, stocked sub-SKU of a product (e.g. a pack size).
type Variant struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Unit        Unit            `json:"unit"`
	Measurement float64         `json:"measurement"`
	Stock       float64         `json:"stock"`
}

// SizeCategory is the fish-product analog of a variant: a weight-range price
// tier. Actual delivered weight is reconciled after placement.
type SizeCategory struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PricePerKg decimal.Decimal `json:"pricePerKg"`
	MinKg      float64         `json:"minKg"`
	MaxKg      float64         `json:"maxKg"`
}

// VariantByID returns the variant with the given id, or nil.
func (p *Product) VariantByID(id string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// Repository defines read operations for the local catalog snapshot.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
