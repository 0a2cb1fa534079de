package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/machbazar/checkout/internal/domain/catalog"
)

// Kind tags a line with its fulfillment path. The zero value marks legacy
// lines persisted before tagging was introduced; those are re-classified
// structurally on read.
type Kind string

const (
	KindUnknown  Kind = ""
	KindStandard Kind = "standard"
	KindFish     Kind = "fish"
)

// Sentinel errors for cart mutations.
var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrUnknownVariant  = errors.New("variant not found on product")
	ErrUnknownLine     = errors.New("line not in cart")
	ErrInvalidUnit     = errors.New("unsupported selling unit")
)

// InsufficientStockError indicates a requested quantity above the stock
// ceiling snapshotted on the line.
type InsufficientStockError struct {
	Name      string
	Requested float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %g of %q available, requested %g", e.Available, e.Name, e.Requested)
}

// BelowMinimumError indicates a quantity under the unit's minimum increment.
type BelowMinimumError struct {
	Name string
	Unit catalog.Unit
	Min  float64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum order for %q is %g %s", e.Name, e.Min, e.Unit)
}

// VariantSnapshot is the point-in-time copy of the selected variant.
type VariantSnapshot struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Unit        catalog.Unit    `json:"unit"`
	Measurement float64         `json:"measurement"`
}

// Line is one (product, variant) cart entry. All product fields are
// snapshots taken at add-to-cart time.
type Line struct {
	ProductID      string                 `json:"productId"`
	VariantID      string                 `json:"variantId,omitempty"`
	Name           string                 `json:"name"`
	Quantity       float64                `json:"quantity"`
	UnitPrice      decimal.Decimal        `json:"unitPrice"`
	Unit           catalog.Unit           `json:"unit"`
	Measurement    float64                `json:"measurement"`
	UnitWeightKg   float64                `json:"unitWeightKg,omitempty"`
	Stock          float64                `json:"stock"`
	CategoryName   string                 `json:"categoryName,omitempty"`
	IsFish         bool                   `json:"isFish,omitempty"`
	SizeCategories []catalog.SizeCategory `json:"sizeCategories,omitempty"`
	Variant        *VariantSnapshot       `json:"variant,omitempty"`
	Kind           Kind                   `json:"kind,omitempty"`
}

// Key returns the line identity: (productId, variantId | "default").
func (l Line) Key() string {
	v := l.VariantID
	if v == "" {
		v = "default"
	}
	return l.ProductID + "|" + v
}

// Subtotal returns unitPrice × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromFloat(l.Quantity))
}

// NewLine snapshots a catalog product into a cart line. Variant price and
// stock take precedence over the product's when variantID is given. The
// fulfillment kind is left unknown; the caller stamps it before adding.
func NewLine(p *catalog.Product, quantity float64, variantID string) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	if !p.Unit.Valid() {
		return Line{}, errors.Wrapf(ErrInvalidUnit, "product %q unit %q", p.ID, p.Unit)
	}

	l := Line{
		ProductID:      p.ID,
		Name:           p.Name,
		Quantity:       quantity,
		UnitPrice:      p.Price,
		Unit:           p.Unit,
		Measurement:    p.Measurement,
		UnitWeightKg:   p.UnitWeightKg,
		Stock:          p.Stock,
		CategoryName:   p.CategoryName,
		IsFish:         p.IsFish,
		SizeCategories: p.SizeCategories,
	}

	if variantID != "" {
		v := p.VariantByID(variantID)
		if v == nil {
			return Line{}, errors.Wrapf(ErrUnknownVariant, "product %q variant %q", p.ID, variantID)
		}
		l.VariantID = v.ID
		l.UnitPrice = v.Price
		l.Unit = v.Unit
		l.Measurement = v.Measurement
		l.Stock = v.Stock
		l.Variant = &VariantSnapshot{
			ID:          v.ID,
			Name:        v.Name,
			Price:       v.Price,
			Unit:        v.Unit,
			Measurement: v.Measurement,
		}
	}

	if min := l.Unit.MinIncrement(); quantity < min {
		return Line{}, &BelowMinimumError{Name: l.Name, Unit: l.Unit, Min: min}
	}
	if quantity > l.Stock {
		return Line{}, &InsufficientStockError{Name: l.Name, Requested: quantity, Available: l.Stock}
	}

	return l, nil
}
