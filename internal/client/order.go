package client

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/machbazar/checkout/internal/domain/order"
)

var (
	_ order.API     = (*OrderClient)(nil)
	_ order.FishAPI = (*FishOrderClient)(nil)
)

// ErrNoOrderID is returned when a 2xx order response carries no recognizable
// order identifier.
var ErrNoOrderID = errors.New("order response carried no id")

// OrderClient calls the standard order backend.
type OrderClient struct {
	*core
}

// NewOrderClient creates a standard order API client.
func NewOrderClient(opts Options) *OrderClient {
	return &OrderClient{core: newCore(opts)}
}

type orderItemPayload struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Quantity  float64         `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type addressPayload struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Division   string `json:"division,omitempty"`
	District   string `json:"district"`
	Upazila    string `json:"upazila"`
	Street     string `json:"street"`
	PostalCode string `json:"postalCode"`
}

type guestPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type orderPayload struct {
	Items           []orderItemPayload `json:"items"`
	ShippingFee     decimal.Decimal    `json:"shippingFee"`
	TotalPrice      decimal.Decimal    `json:"totalPrice"`
	DeliveryZone    string             `json:"deliveryZone"`
	PaymentMethod   string             `json:"paymentMethod"`
	ShippingAddress addressPayload     `json:"shippingAddress"`
	GuestCustomer   *guestPayload      `json:"guestCustomer,omitempty"`
}

// Create submits a standard order and returns the backend order id.
func (c *OrderClient) Create(ctx context.Context, o *order.Order) (string, error) {
	payload := orderPayload{
		Items:         make([]orderItemPayload, len(o.Items)),
		ShippingFee:   o.ShippingFee,
		TotalPrice:    o.TotalPrice,
		DeliveryZone:  string(o.Zone),
		PaymentMethod: "cash_on_delivery",
		ShippingAddress: addressPayload{
			Name:       o.Address.Name,
			Phone:      o.Address.Phone,
			District:   o.Address.District,
			Upazila:    o.Address.Upazila,
			Street:     o.Address.Street,
			PostalCode: o.Address.PostalCode,
		},
	}
	for i, it := range o.Items {
		payload.Items[i] = orderItemPayload{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	if c.token == "" {
		payload.GuestCustomer = &guestPayload{Name: o.Customer.Name, Phone: o.Customer.Phone}
	}

	body, err := c.postJSON(ctx, "/api/orders", payload)
	if err != nil {
		return "", err
	}
	return extractOrderID(body)
}

// FishOrderClient calls the fish order backend.
type FishOrderClient struct {
	*core
}

// NewFishOrderClient creates a fish order API client.
func NewFishOrderClient(opts Options) *FishOrderClient {
	return &FishOrderClient{core: newCore(opts)}
}

type fishItemPayload struct {
	ProductID       string          `json:"productId"`
	Name            string          `json:"name"`
	RequestedWeight float64         `json:"requestedWeight"`
	SizeCategoryID  string          `json:"sizeCategoryId"`
	PricePerKg      decimal.Decimal `json:"pricePerKg"`
}

type fishOrderPayload struct {
	Items           []fishItemPayload `json:"items"`
	ShippingFee     decimal.Decimal   `json:"shippingFee"`
	TotalPrice      decimal.Decimal   `json:"totalPrice"`
	DeliveryZone    string            `json:"deliveryZone"`
	PaymentMethod   string            `json:"paymentMethod"`
	ShippingAddress addressPayload    `json:"shippingAddress"`
	GuestCustomer   *guestPayload     `json:"guestCustomer,omitempty"`
}

// Create submits a fish order. The shipping address additionally carries the
// division.
func (c *FishOrderClient) Create(ctx context.Context, o *order.FishOrder) (string, error) {
	payload := fishOrderPayload{
		Items:         make([]fishItemPayload, len(o.Items)),
		ShippingFee:   o.ShippingFee,
		TotalPrice:    o.TotalPrice,
		DeliveryZone:  string(o.Zone),
		PaymentMethod: "cash_on_delivery",
		ShippingAddress: addressPayload{
			Name:       o.Address.Name,
			Phone:      o.Address.Phone,
			Division:   o.Address.Division,
			District:   o.Address.District,
			Upazila:    o.Address.Upazila,
			Street:     o.Address.Street,
			PostalCode: o.Address.PostalCode,
		},
	}
	for i, it := range o.Items {
		payload.Items[i] = fishItemPayload{
			ProductID:       it.ProductID,
			Name:            it.Name,
			RequestedWeight: it.RequestedWeightKg,
			SizeCategoryID:  it.SizeCategoryID,
			PricePerKg:      it.PricePerKg,
		}
	}
	if c.token == "" {
		payload.GuestCustomer = &guestPayload{Name: o.Customer.Name, Phone: o.Customer.Phone}
	}

	body, err := c.postJSON(ctx, "/api/fish-orders", payload)
	if err != nil {
		return "", err
	}
	return extractOrderID(body)
}

// extractOrderID pulls the created id out of a loosely-shaped response
// envelope: `{"order":{"_id":...}}`, `{"fishOrder":{...}}`, `{"data":{...}}`,
// or a bare `{"_id":...}` / `{"id":...}`.
func extractOrderID(body []byte) (string, error) {
	id, err := findID(jx.DecodeBytes(body))
	if err != nil {
		return "", errors.Wrap(err, "decode order response")
	}
	if id == "" {
		return "", ErrNoOrderID
	}
	return id, nil
}

func findID(d *jx.Decoder) (string, error) {
	var id string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "_id", "id":
			if id != "" {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			id = s
			return nil
		case "order", "fishOrder", "data":
			if id != "" || d.Next() != jx.Object {
				return d.Skip()
			}
			nested, err := findID(d)
			if err != nil {
				return err
			}
			id = nested
			return nil
		default:
			return d.Skip()
		}
	})
	return id, err
}
