package shipping

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/weight"
)

// Quoter owns the live shipping quote for one checkout session. Any zone or
// cart change invalidates the current quote and, when a zone is selected and
// the cart is non-empty, starts a new request. At most one request is
// authoritative at a time: each refresh bumps a generation counter and a
// response is discarded unless its generation still matches.
type Quoter struct {
	svc Service

	mu      sync.Mutex
	zone    Zone
	zoneSet bool
	gen     uint64
	quote   *Quote
	loading bool
	err     error

	requests metric.Int64Counter
	stale    metric.Int64Counter
	failures metric.Int64Counter
}

// NewQuoter creates a Quoter backed by the given pricing service.
func NewQuoter(svc Service) *Quoter {
	meter := otel.Meter("github.com/machbazar/checkout/internal/domain/shipping")
	requests, _ := meter.Int64Counter("shipping.quote.requests",
		metric.WithDescription("Shipping quote requests started"))
	stale, _ := meter.Int64Counter("shipping.quote.stale_responses",
		metric.WithDescription("Quote responses discarded as superseded"))
	failures, _ := meter.Int64Counter("shipping.quote.failures",
		metric.WithDescription("Quote requests that returned an error"))

	return &Quoter{
		svc:      svc,
		requests: requests,
		stale:    stale,
		failures: failures,
	}
}

// SelectZone sets the delivery zone and refreshes the quote against the
// given cart contents.
func (q *Quoter) SelectZone(ctx context.Context, zone Zone, lines []cart.Line) error {
	if !zone.Valid() {
		return errors.Wrapf(ErrInvalidZone, "%q", zone)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.zone = zone
	q.zoneSet = true
	q.refreshLocked(ctx, lines)
	return nil
}

// CartChanged invalidates the current quote after any cart mutation and
// requests a fresh one when a zone is selected.
func (q *Quoter) CartChanged(ctx context.Context, lines []cart.Line) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refreshLocked(ctx, lines)
}

// refreshLocked invalidates the current fee and starts a new request when
// the preconditions hold. Bumping the generation first supersedes any
// request still in flight. Caller holds mu.
func (q *Quoter) refreshLocked(ctx context.Context, lines []cart.Line) {
	q.gen++
	q.quote = nil

	if !q.zoneSet || len(lines) == 0 {
		q.loading = false
		return
	}

	items := make([]QuoteItem, len(lines))
	for i, l := range lines {
		items[i] = QuoteItem{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			WeightKg:  weight.LineKg(l),
		}
	}
	req := QuoteRequest{
		Items:         items,
		TotalWeightKg: weight.TotalKg(lines),
		Zone:          q.zone,
	}

	q.loading = true
	q.requests.Add(ctx, 1)
	go q.fetch(ctx, q.gen, req)
}

// fetch performs one quote request and applies the result only if its
// generation is still current.
func (q *Quoter) fetch(ctx context.Context, gen uint64, req QuoteRequest) {
	quote, err := q.svc.GetQuote(ctx, req)

	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.gen {
		q.stale.Add(ctx, 1)
		zctx.From(ctx).Debug("Discarding superseded shipping quote",
			zap.Uint64("gen", gen), zap.Uint64("current", q.gen))
		return
	}

	q.loading = false
	if err != nil {
		q.failures.Add(ctx, 1)
		q.quote = nil
		q.err = errors.Wrap(err, "shipping quote")
		zctx.From(ctx).Warn("Shipping quote failed", zap.Error(err))
		return
	}

	q.quote = quote
	q.err = nil
}

// Fee returns the quoted fee and whether a fresh quote has resolved. Until
// then the fee must read as unknown, not zero.
func (q *Quoter) Fee() (decimal.Decimal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.quote == nil {
		return decimal.Zero, false
	}
	return q.quote.Fee, true
}

// Quote returns a copy of the resolved quote, if any.
func (q *Quoter) Quote() (Quote, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.quote == nil {
		return Quote{}, false
	}
	return *q.quote, true
}

// Zone returns the selected zone, if one has been chosen.
func (q *Quoter) Zone() (Zone, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.zone, q.zoneSet
}

// Loading reports whether a quote request is in flight.
func (q *Quoter) Loading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loading
}

// Err returns the last quote failure. It persists until the next successful
// quote.
func (q *Quoter) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Ready reports whether placement may proceed: a zone is selected, no
// request is in flight, and a quote has resolved.
func (q *Quoter) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.zoneSet && !q.loading && q.quote != nil
}
