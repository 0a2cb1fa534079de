package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/checkout"
	"github.com/machbazar/checkout/internal/domain/shipping"
)

// Identity is the guest identity embedded in order payloads when no
// authenticated session is available.
type Identity struct {
	Name  string
	Phone string
}

// Item is one line of a standard order.
type Item struct {
	ProductID string
	VariantID string
	Name      string
	Quantity  float64
	UnitPrice decimal.Decimal
}

// Order is the standard-partition payload. ShippingFee is this partition's
// share of the quoted fee.
type Order struct {
	Items       []Item
	ShippingFee decimal.Decimal
	TotalPrice  decimal.Decimal
	Zone        shipping.Zone
	Address     checkout.Address
	Customer    Identity
}

// FishItem is one weight-variable line. RequestedWeightKg is the line's
// quantity, itself a kilogram amount; actual weight is reconciled after
// placement.
type FishItem struct {
	ProductID         string
	Name              string
	RequestedWeightKg float64
	SizeCategoryID    string
	PricePerKg        decimal.Decimal
}

// FishOrder is the fish-partition payload. Its shipping address additionally
// carries the division.
type FishOrder struct {
	Items       []FishItem
	ShippingFee decimal.Decimal
	TotalPrice  decimal.Decimal
	Zone        shipping.Zone
	Address     checkout.Address
	Customer    Identity
}

// API is the standard order backend.
type API interface {
	Create(ctx context.Context, o *Order) (id string, err error)
}

// FishAPI is the fish order backend.
type FishAPI interface {
	Create(ctx context.Context, o *FishOrder) (id string, err error)
}

// UnresolvedSizeCategoryError indicates a fish line whose size category could
// not be determined. Raised before any network call.
type UnresolvedSizeCategoryError struct {
	ProductID string
	Name      string
}

func (e *UnresolvedSizeCategoryError) Error() string {
	return fmt.Sprintf("no size category for %q", e.Name)
}

// resolveSizeCategory picks the size-category id for a fish line: the line's
// variant id when it matches a tier, then the variant snapshot id, then the
// first tier as default.
func resolveSizeCategory(l cart.Line) (string, error) {
	for _, sc := range l.SizeCategories {
		if l.VariantID != "" && sc.ID == l.VariantID {
			return sc.ID, nil
		}
	}
	if l.Variant != nil {
		for _, sc := range l.SizeCategories {
			if sc.ID == l.Variant.ID {
				return sc.ID, nil
			}
		}
	}
	if len(l.SizeCategories) > 0 {
		return l.SizeCategories[0].ID, nil
	}
	return "", &UnresolvedSizeCategoryError{ProductID: l.ProductID, Name: l.Name}
}

// splitFee divides the quoted fee between the partitions proportionally to
// line count. The fish share is the remainder so the two always sum to the
// quoted fee.
func splitFee(fee decimal.Decimal, regularLines, fishLines int) (regular, fish decimal.Decimal) {
	switch {
	case regularLines == 0:
		return decimal.Zero, fee
	case fishLines == 0:
		return fee, decimal.Zero
	}
	total := decimal.NewFromInt(int64(regularLines + fishLines))
	regular = fee.Mul(decimal.NewFromInt(int64(regularLines))).DivRound(total, 2)
	return regular, fee.Sub(regular)
}

// buildOrder assembles the standard-partition payload.
func buildOrder(lines []cart.Line, feeShare decimal.Decimal, zone shipping.Zone, addr checkout.Address, cust Identity) *Order {
	items := make([]Item, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		items[i] = Item{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
		total = total.Add(l.Subtotal())
	}
	return &Order{
		Items:       items,
		ShippingFee: feeShare,
		TotalPrice:  total,
		Zone:        zone,
		Address:     addr,
		Customer:    cust,
	}
}

// buildFishOrder assembles the fish-partition payload. Size-category
// resolution failures surface here, before any network call.
func buildFishOrder(lines []cart.Line, feeShare decimal.Decimal, zone shipping.Zone, addr checkout.Address, cust Identity) (*FishOrder, error) {
	items := make([]FishItem, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		scID, err := resolveSizeCategory(l)
		if err != nil {
			return nil, err
		}
		items[i] = FishItem{
			ProductID:         l.ProductID,
			Name:              l.Name,
			RequestedWeightKg: l.Quantity,
			SizeCategoryID:    scID,
			PricePerKg:        l.UnitPrice,
		}
		total = total.Add(l.Subtotal())
	}
	return &FishOrder{
		Items:       items,
		ShippingFee: feeShare,
		TotalPrice:  total,
		Zone:        zone,
		Address:     addr,
		Customer:    cust,
	}, nil
}
