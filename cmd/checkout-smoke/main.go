// Command checkout-smoke runs one scripted checkout against the configured
// backends: add products, select a zone, wait for the shipping quote, and
// place the order as a guest. Intended for staging smoke tests after a
// backend deploy.
package main

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	ckapp "github.com/machbazar/checkout/internal/app"
	"github.com/machbazar/checkout/internal/domain/catalog"
	"github.com/machbazar/checkout/internal/domain/checkout"
	"github.com/machbazar/checkout/internal/domain/order"
	"github.com/machbazar/checkout/internal/domain/shipping"
)

const quoteTimeout = 15 * time.Second

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		cfg, err := ckapp.LoadConfig()
		if err != nil {
			return err
		}
		return run(ctx, lg, cfg)
	})
}

func run(ctx context.Context, lg *zap.Logger, cfg *ckapp.Config) error {
	sessionID := "smoke-" + uuid.NewString()
	a, err := ckapp.Build(ctx, cfg, sessionID)
	if err != nil {
		return errors.Wrap(err, "build checkout")
	}
	defer a.Close()

	h := a.Handler
	for _, p := range smokeProducts(ctx, a) {
		if err := h.AddToCart(ctx, &p, p.Unit.MinIncrement(), ""); err != nil {
			return errors.Wrapf(err, "add %q", p.Name)
		}
	}
	lg.Info("Cart filled",
		zap.Int("lines", h.Cart().Count()),
		zap.String("total", h.Cart().Total().String()))

	if err := h.SelectZone(ctx, shipping.ZoneInsideDhaka); err != nil {
		return errors.Wrap(err, "select zone")
	}
	if err := waitForQuote(ctx, h.Quoter()); err != nil {
		return err
	}
	fee, _ := h.Quoter().Fee()
	lg.Info("Quote resolved", zap.String("fee", fee.String()))

	if err := h.ProceedToAddress(); err != nil {
		return errors.Wrap(err, "proceed to address")
	}

	addr := checkout.Address{
		Name:       "Smoke Test",
		Phone:      "01700000000",
		Division:   "Dhaka",
		District:   "Dhaka",
		Upazila:    "Gulshan",
		Street:     "House 1, Road 1",
		PostalCode: "1212",
	}
	res, err := h.PlaceOrder(ctx, addr, order.Identity{Name: addr.Name, Phone: addr.Phone})
	if err != nil {
		return errors.Wrap(err, "place order")
	}

	switch res.State {
	case order.StatePartialSuccess:
		lg.Warn("Partial success",
			zap.String("support_reference", res.SupportReference),
			zap.Error(res.Err))
		ref, err := h.AcknowledgePartialSuccess(ctx)
		if err != nil {
			return err
		}
		lg.Info("Partial success acknowledged", zap.String("support_reference", ref))
	default:
		lg.Info("Order placed",
			zap.String("primary_id", res.PrimaryID),
			zap.String("order_id", res.OrderID),
			zap.String("fish_order_id", res.FishOrderID))
	}
	return nil
}

// waitForQuote polls until the quote resolves, fails, or times out.
func waitForQuote(ctx context.Context, q *shipping.Quoter) error {
	deadline := time.Now().Add(quoteTimeout)
	for time.Now().Before(deadline) {
		if q.Ready() {
			return nil
		}
		if !q.Loading() {
			if err := q.Err(); err != nil {
				return errors.Wrap(err, "quote")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return errors.New("quote did not resolve in time")
}

// smokeProducts returns catalog products when a database is configured, and
// a built-in standard/fish pair otherwise.
func smokeProducts(ctx context.Context, a *ckapp.App) []catalog.Product {
	if a.Catalog != nil {
		if list, err := a.Catalog.List(ctx); err == nil && len(list) > 0 {
			if len(list) > 2 {
				list = list[:2]
			}
			return list
		}
	}
	return []catalog.Product{
		{
			ID:           "smoke-rice",
			Name:         "Miniket Rice 5kg",
			Price:        priceOf("420"),
			Unit:         catalog.UnitPiece,
			Measurement:  1,
			UnitWeightKg: 5,
			Stock:        10,
			CategoryName: "Grocery",
		},
		{
			ID:           "smoke-rui",
			Name:         "Rui Fish",
			Price:        priceOf("350"),
			Unit:         catalog.UnitKilogram,
			Measurement:  1,
			Stock:        20,
			CategoryName: "Fresh Fish",
			IsFish:       true,
			SizeCategories: []catalog.SizeCategory{
				{ID: "rui-medium", Name: "Medium (1-2kg)", PricePerKg: priceOf("350"), MinKg: 1, MaxKg: 2},
			},
		},
	}
}

func priceOf(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
