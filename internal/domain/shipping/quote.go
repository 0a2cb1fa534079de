package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Zone is a delivery pricing region. The selected zone is authoritative over
// any address-derived inference on the backend.
type Zone string

const (
	ZoneInsideDhaka  Zone = "inside_dhaka"
	ZoneOutsideDhaka Zone = "outside_dhaka"
)

// Valid reports whether z is a known delivery zone.
func (z Zone) Valid() bool {
	return z == ZoneInsideDhaka || z == ZoneOutsideDhaka
}

// ErrInvalidZone is returned when an unknown zone is selected.
var ErrInvalidZone = errors.New("unknown delivery zone")

// Breakdown describes how the quoted fee was derived.
type Breakdown struct {
	Type string
	Tier string
}

// Quote is a resolved shipping fee for (cart contents, zone). Quotes are
// derived values, never persisted, and invalidated by any cart or zone
// change.
type Quote struct {
	Zone          Zone
	TotalWeightKg float64
	Fee           decimal.Decimal
	Breakdown     Breakdown
}

// QuoteItem is one cart line as seen by the pricing service.
type QuoteItem struct {
	ProductID string
	VariantID string
	Quantity  float64
	WeightKg  float64
}

// AddressHint carries whatever address data is known at quoting time. Fields
// may be placeholders; the zone decides pricing.
type AddressHint struct {
	Name       string
	Phone      string
	District   string
	PostalCode string
}

// QuoteRequest is the input to the external pricing service.
type QuoteRequest struct {
	Items         []QuoteItem
	TotalWeightKg float64
	Address       AddressHint
	Zone          Zone
}

// Service is the external fee-pricing collaborator.
type Service interface {
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
}
