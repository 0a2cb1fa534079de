package order

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/checkout"
	"github.com/machbazar/checkout/internal/domain/fulfillment"
	"github.com/machbazar/checkout/internal/domain/shipping"
)

// State tracks one placement attempt through the orchestrator.
type State string

const (
	StateIdle              State = "idle"
	StateSubmittingRegular State = "submitting_regular"
	StateSubmittingFish    State = "submitting_fish"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
	StatePartialSuccess    State = "partial_success"
)

// Sentinel errors for placement preconditions.
var (
	ErrEmptyCart         = errors.New("cannot place an order for an empty cart")
	ErrPlacementInFlight = errors.New("an order placement is already in progress")
)

// SubmitError is an order-submission failure normalized into a human-readable
// message. FishPending marks the combined failure where the regular order
// failed and the fish order was never attempted.
type SubmitError struct {
	Partition   string // "regular" or "fish"
	FishPending bool
	Err         error
}

func (e *SubmitError) Error() string {
	if e.FishPending {
		return fmt.Sprintf("could not place your order (%v); your fish items were not submitted", e.Err)
	}
	return fmt.Sprintf("could not place your %s order: %v", e.Partition, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Request is one placement attempt: the full cart plus the resolved quote,
// address, and customer identity.
type Request struct {
	Lines    []cart.Line
	Quote    shipping.Quote
	Address  checkout.Address
	Customer Identity
}

// Result is the unified outcome of a placement attempt. On partial success,
// SupportReference carries the standard order id the user must quote to
// support; Err holds the fish failure.
type Result struct {
	State            State
	OrderID          string
	FishOrderID      string
	PrimaryID        string
	SupportReference string
	Err              error
}

// Orchestrator converts the partitioned cart into zero, one, or two
// sequential order submissions with a defined partial-failure contract. The
// submissions are never concurrent: a concurrent pair could not distinguish
// "both failed" from "regular failed, fish never attempted".
type Orchestrator struct {
	orders API
	fish   FishAPI
	tracer trace.Tracer

	// inFlight is the re-entrancy latch: set before the first network call,
	// released on every exit path by defer.
	inFlight atomic.Bool

	mu    sync.Mutex
	state State
}

// NewOrchestrator creates an Orchestrator over the two order backends.
func NewOrchestrator(orders API, fish FishAPI) *Orchestrator {
	return &Orchestrator{
		orders: orders,
		fish:   fish,
		tracer: otel.Tracer("github.com/machbazar/checkout/internal/domain/order"),
		state:  StateIdle,
	}
}

// State returns the state of the current or most recent placement attempt.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Place runs one placement attempt.
//
// Failure ordering: a regular-order failure aborts before the fish order is
// ever attempted; a fish-order failure after a successful regular order is
// reported as partial success carrying the regular order's id. Both payloads
// are validated before the first network call, so a validation error never
// leaves a dangling order server-side.
func (o *Orchestrator) Place(ctx context.Context, req Request) (*Result, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrPlacementInFlight
	}
	defer o.inFlight.Store(false)

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Place", trace.WithAttributes(
		attribute.Int("cart.lines", len(req.Lines)),
		attribute.String("shipping.zone", string(req.Quote.Zone)),
	))
	defer span.End()

	lg := zctx.From(ctx)
	p := fulfillment.Split(req.Lines)
	regularFee, fishFee := splitFee(req.Quote.Fee, len(p.Regular), len(p.Fish))

	var (
		regularOrder *Order
		fishOrder    *FishOrder
	)
	if len(p.Regular) > 0 {
		regularOrder = buildOrder(p.Regular, regularFee, req.Quote.Zone, req.Address, req.Customer)
	}
	if len(p.Fish) > 0 {
		fo, err := buildFishOrder(p.Fish, fishFee, req.Quote.Zone, req.Address, req.Customer)
		if err != nil {
			o.setState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid fish order")
			return nil, err
		}
		fishOrder = fo
	}

	res := &Result{}

	o.setState(StateSubmittingRegular)
	if regularOrder != nil {
		lg.Info("Submitting regular order",
			zap.Int("lines", len(regularOrder.Items)),
			zap.String("zone", string(req.Quote.Zone)))
		id, err := o.orders.Create(ctx, regularOrder)
		if err != nil {
			o.setState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, "regular order failed")
			return nil, &SubmitError{
				Partition:   "regular",
				FishPending: fishOrder != nil,
				Err:         err,
			}
		}
		res.OrderID = id
	}

	o.setState(StateSubmittingFish)
	if fishOrder != nil {
		lg.Info("Submitting fish order", zap.Int("lines", len(fishOrder.Items)))
		id, err := o.fish.Create(ctx, fishOrder)
		if err != nil {
			if res.OrderID != "" {
				// A standard order now exists server-side while no fish order
				// does. Never plain failure, never plain success.
				o.setState(StatePartialSuccess)
				res.State = StatePartialSuccess
				res.PrimaryID = res.OrderID
				res.SupportReference = res.OrderID
				res.Err = &SubmitError{Partition: "fish", Err: err}
				span.RecordError(err)
				span.SetAttributes(attribute.String("order.support_reference", res.OrderID))
				lg.Warn("Fish order failed after regular order succeeded",
					zap.String("support_reference", res.OrderID),
					zap.Error(err))
				return res, nil
			}
			o.setState(StateFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, "fish order failed")
			return nil, &SubmitError{Partition: "fish", Err: err}
		}
		res.FishOrderID = id
	}

	o.setState(StateSucceeded)
	res.State = StateSucceeded
	res.PrimaryID = res.OrderID
	if res.PrimaryID == "" {
		res.PrimaryID = res.FishOrderID
	}
	lg.Info("Order placement succeeded",
		zap.String("order_id", res.OrderID),
		zap.String("fish_order_id", res.FishOrderID))
	return res, nil
}
