// Package handler is the UI event surface of the checkout core: every
// storefront event (cart mutation, zone selection, step change, place order)
// maps to one method. It composes the cart store, shipping quoter, checkout
// session, and order orchestrator.
package handler

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/catalog"
	"github.com/machbazar/checkout/internal/domain/checkout"
	"github.com/machbazar/checkout/internal/domain/fulfillment"
	"github.com/machbazar/checkout/internal/domain/order"
	"github.com/machbazar/checkout/internal/domain/shipping"
)

// ErrNoPartialSuccess is returned when acknowledging a partial success that
// does not exist.
var ErrNoPartialSuccess = errors.New("no partial success to acknowledge")

// Handler drives one checkout session.
type Handler struct {
	store   *cart.Store
	quoter  *shipping.Quoter
	session *checkout.Session
	orch    *order.Orchestrator

	mu      sync.Mutex
	pending *order.Result // partial success awaiting acknowledgment
}

// New creates a Handler over the given collaborators with a fresh session.
func New(store *cart.Store, quoter *shipping.Quoter, orch *order.Orchestrator) *Handler {
	return &Handler{
		store:   store,
		quoter:  quoter,
		session: checkout.NewSession(),
		orch:    orch,
	}
}

// Session exposes the current checkout step.
func (h *Handler) Session() *checkout.Session { return h.session }

// Cart exposes the cart store for read access.
func (h *Handler) Cart() *cart.Store { return h.store }

// Quoter exposes the shipping quoter for read access.
func (h *Handler) Quoter() *shipping.Quoter { return h.quoter }

// AddToCart snapshots the product into a line, stamps its fulfillment kind,
// and adds it. Adding an existing (product, variant) key increments the
// quantity. The shipping quote is invalidated.
func (h *Handler) AddToCart(ctx context.Context, p *catalog.Product, quantity float64, variantID string) error {
	line, err := cart.NewLine(p, quantity, variantID)
	if err != nil {
		return err
	}
	line.Kind = fulfillment.Classify(line)

	if err := h.store.Add(ctx, line); err != nil {
		return err
	}
	h.quoter.CartChanged(ctx, h.store.Lines())
	return nil
}

// UpdateQuantity changes a line's quantity; zero or negative removes the
// line. The shipping quote is invalidated.
func (h *Handler) UpdateQuantity(ctx context.Context, key string, quantity float64) error {
	if err := h.store.UpdateQuantity(ctx, key, quantity); err != nil {
		return err
	}
	h.quoter.CartChanged(ctx, h.store.Lines())
	return nil
}

// RemoveLine deletes a line and invalidates the shipping quote.
func (h *Handler) RemoveLine(ctx context.Context, key string) error {
	if err := h.store.Remove(ctx, key); err != nil {
		return err
	}
	h.quoter.CartChanged(ctx, h.store.Lines())
	return nil
}

// ClearCart empties the cart and invalidates the shipping quote.
func (h *Handler) ClearCart(ctx context.Context) error {
	if err := h.store.Clear(ctx); err != nil {
		return err
	}
	h.quoter.CartChanged(ctx, h.store.Lines())
	return nil
}

// SelectZone chooses the delivery zone and triggers a fresh quote.
func (h *Handler) SelectZone(ctx context.Context, zone shipping.Zone) error {
	return h.quoter.SelectZone(ctx, zone, h.store.Lines())
}

// ProceedToAddress moves the session from cart to address selection.
func (h *Handler) ProceedToAddress() error {
	return h.session.ToAddress(h.store.IsEmpty())
}

// BackToCart returns to the cart step, preserving the cart.
func (h *Handler) BackToCart() error {
	return h.session.BackToCart()
}

// GrandTotal returns cart total plus shipping fee. known is false until a
// fresh quote has resolved; the UI must then show the fee as unknown, never
// zero.
func (h *Handler) GrandTotal() (total decimal.Decimal, known bool) {
	fee, ok := h.quoter.Fee()
	if !ok {
		return h.store.Total(), false
	}
	return h.store.Total().Add(fee), true
}

// PlaceOrder runs one placement attempt. On success the cart is cleared and
// the session reaches placed. On partial success the cart is kept and the
// result carries the support reference; the session reverts to address until
// AcknowledgePartialSuccess. On failure the session reverts to address with
// the cart untouched.
func (h *Handler) PlaceOrder(ctx context.Context, addr checkout.Address, cust order.Identity) (*order.Result, error) {
	quote, ready := h.quoter.Quote()
	_, zoneSet := h.quoter.Zone()

	if err := h.session.BeginPlacement(addr, zoneSet, h.quoter.Loading(), ready); err != nil {
		return nil, err
	}

	res, err := h.orch.Place(ctx, order.Request{
		Lines:    h.store.Lines(),
		Quote:    quote,
		Address:  addr,
		Customer: cust,
	})
	if err != nil {
		h.session.FinishPlacement(false)
		return nil, err
	}

	switch res.State {
	case order.StatePartialSuccess:
		h.session.FinishPlacement(false)
		h.mu.Lock()
		h.pending = res
		h.mu.Unlock()
	default:
		if err := h.store.Clear(ctx); err != nil {
			// The orders exist server-side; a stale persisted cart is the
			// lesser problem.
			zctx.From(ctx).Warn("Clearing cart after placement failed", zap.Error(err))
		}
		h.quoter.CartChanged(ctx, nil)
		h.session.FinishPlacement(true)
	}
	return res, nil
}

// AcknowledgePartialSuccess is the explicit acceptance of a partial success:
// it clears the cart, moves the session to placed, and returns the support
// reference id.
func (h *Handler) AcknowledgePartialSuccess(ctx context.Context) (string, error) {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	if pending == nil {
		return "", ErrNoPartialSuccess
	}
	if err := h.store.Clear(ctx); err != nil {
		zctx.From(ctx).Warn("Clearing cart after acknowledgment failed", zap.Error(err))
	}
	h.quoter.CartChanged(ctx, nil)
	h.session.MarkPlaced()
	return pending.SupportReference, nil
}
