package client

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/machbazar/checkout/internal/domain/shipping"
)

var _ shipping.Service = (*ShippingClient)(nil)

// ShippingClient calls the external fee-pricing service.
type ShippingClient struct {
	*core
}

// NewShippingClient creates a quote service client.
func NewShippingClient(opts Options) *ShippingClient {
	return &ShippingClient{core: newCore(opts)}
}

type quoteItemPayload struct {
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId,omitempty"`
	Quantity  float64 `json:"quantity"`
	WeightKg  float64 `json:"weightKg"`
}

type quoteAddressPayload struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	District   string `json:"district"`
	PostalCode string `json:"postalCode"`
}

type quotePayload struct {
	Items         []quoteItemPayload  `json:"items"`
	TotalWeightKg float64             `json:"totalWeightKg"`
	Address       quoteAddressPayload `json:"address"`
	Zone          string              `json:"zone"`
}

// GetQuote requests a shipping fee for (cart contents, zone). The zone is
// authoritative server-side; address fields may be placeholders.
func (c *ShippingClient) GetQuote(ctx context.Context, req shipping.QuoteRequest) (*shipping.Quote, error) {
	payload := quotePayload{
		Items:         make([]quoteItemPayload, len(req.Items)),
		TotalWeightKg: req.TotalWeightKg,
		Address: quoteAddressPayload{
			Name:       req.Address.Name,
			Phone:      req.Address.Phone,
			District:   req.Address.District,
			PostalCode: req.Address.PostalCode,
		},
		Zone: string(req.Zone),
	}
	for i, it := range req.Items {
		payload.Items[i] = quoteItemPayload{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			WeightKg:  it.WeightKg,
		}
	}

	body, err := c.postJSON(ctx, "/api/shipping/quote", payload)
	if err != nil {
		return nil, err
	}

	quote, err := decodeQuote(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode quote response")
	}
	return quote, nil
}

// decodeQuote parses the pricing service response. Unknown keys are skipped.
func decodeQuote(body []byte) (*shipping.Quote, error) {
	var q shipping.Quote
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "shippingFee":
			f, err := d.Float64()
			if err != nil {
				return err
			}
			q.Fee = decimal.NewFromFloat(f)
			return nil
		case "totalWeightKg":
			var err error
			q.TotalWeightKg, err = d.Float64()
			return err
		case "zone":
			s, err := d.Str()
			if err != nil {
				return err
			}
			q.Zone = shipping.Zone(s)
			return nil
		case "breakdown":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "type":
					s, err := d.Str()
					q.Breakdown.Type = s
					return err
				case "tier":
					s, err := d.Str()
					q.Breakdown.Tier = s
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}
	return &q, nil
}
