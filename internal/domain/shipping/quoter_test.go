package shipping

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/catalog"
)

type quoteResponse struct {
	quote *Quote
	err   error
}

// gatedService blocks every GetQuote call until the test releases it, so
// in-flight requests can be interleaved deterministically.
type gatedService struct {
	mu    sync.Mutex
	reqs  []QuoteRequest
	gates []chan quoteResponse
}

func (s *gatedService) GetQuote(_ context.Context, req QuoteRequest) (*Quote, error) {
	gate := make(chan quoteResponse)
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.gates = append(s.gates, gate)
	s.mu.Unlock()

	resp := <-gate
	return resp.quote, resp.err
}

func (s *gatedService) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gates)
}

func (s *gatedService) release(t *testing.T, i int, resp quoteResponse) {
	t.Helper()
	require.Eventually(t, func() bool { return s.calls() > i }, 2*time.Second, 10*time.Millisecond)
	s.mu.Lock()
	gate := s.gates[i]
	s.mu.Unlock()
	gate <- resp
}

func kgLines(qty float64) []cart.Line {
	return []cart.Line{{
		ProductID:   "rui",
		Quantity:    qty,
		Unit:        catalog.UnitKilogram,
		Measurement: 1,
	}}
}

func testQuote(fee string, zone Zone) *Quote {
	return &Quote{
		Zone:          zone,
		TotalWeightKg: 1.5,
		Fee:           decimal.RequireFromString(fee),
		Breakdown:     Breakdown{Type: "weight", Tier: "base"},
	}
}

func TestQuoter_NoZoneNoRequest(t *testing.T) {
	svc := &gatedService{}
	q := NewQuoter(svc)

	q.CartChanged(context.Background(), kgLines(1))

	_, known := q.Fee()
	assert.False(t, known, "fee must read unknown without a zone")
	assert.False(t, q.Loading())
	assert.Equal(t, 0, svc.calls())
}

func TestQuoter_EmptyCartNoRequest(t *testing.T) {
	svc := &gatedService{}
	q := NewQuoter(svc)

	require.NoError(t, q.SelectZone(context.Background(), ZoneInsideDhaka, nil))

	_, known := q.Fee()
	assert.False(t, known)
	assert.Equal(t, 0, svc.calls())
}

func TestQuoter_InvalidZone(t *testing.T) {
	q := NewQuoter(&gatedService{})
	err := q.SelectZone(context.Background(), Zone("moon"), kgLines(1))
	require.ErrorIs(t, err, ErrInvalidZone)
}

func TestQuoter_ResolvesQuote(t *testing.T) {
	svc := &gatedService{}
	q := NewQuoter(svc)
	ctx := context.Background()

	require.NoError(t, q.SelectZone(ctx, ZoneInsideDhaka, kgLines(1.5)))
	assert.True(t, q.Loading())

	svc.release(t, 0, quoteResponse{quote: testQuote("40", ZoneInsideDhaka)})

	require.Eventually(t, func() bool {
		_, known := q.Fee()
		return known
	}, 2*time.Second, 10*time.Millisecond)

	fee, _ := q.Fee()
	assert.True(t, decimal.RequireFromString("40").Equal(fee))
	assert.True(t, q.Ready())
	assert.NoError(t, q.Err())

	// The request carried weight and zone.
	assert.InDelta(t, 1.5, svc.reqs[0].TotalWeightKg, 1e-9)
	assert.Equal(t, ZoneInsideDhaka, svc.reqs[0].Zone)
}

func TestQuoter_ZoneChangeInvalidatesBeforeNewQuote(t *testing.T) {
	svc := &gatedService{}
	q := NewQuoter(svc)
	ctx := context.Background()

	require.NoError(t, q.SelectZone(ctx, ZoneInsideDhaka, kgLines(1)))
	svc.release(t, 0, quoteResponse{quote: testQuote("40", ZoneInsideDhaka)})
	require.Eventually(t, q.Ready, 2*time.Second, 10*time.Millisecond)

	// Changing the zone invalidates immediately, before the new quote lands.
	require.NoError(t, q.SelectZone(ctx, ZoneOutsideDhaka, kgLines(1)))
	_, known := q.Fee()
	assert.False(t, known, "previous fee must be invalidated")
	assert.True(t, q.Loading())

	svc.release(t, 1, quoteResponse{quote: testQuote("120", ZoneOutsideDhaka)})
	require.Eventually(t, q.Ready, 2*time.Second, 10*time.Millisecond)
	fee, _ := q.Fee()
	assert.True(t, decimal.RequireFromString("120").Equal(fee))
}

func TestQuoter_StaleResponseDiscarded(t *testing.T) {
	svc := &gatedService{}
	q := NewQuoter(svc)
	ctx := context.Background()

	require.NoError(t, q.SelectZone(ctx, ZoneInsideDhaka, kgLines(1)))
	// Supersede the first request before it resolves.
	require.NoError(t, q.SelectZone(ctx, ZoneOutsideDhaka, kgLines(1)))

	// The superseded response must never be applied.
	svc.release(t, 0, quoteResponse{quote: testQuote("40", ZoneInsideDhaka)})
	svc.release(t, 1, quoteResponse{quote: testQuote("120", ZoneOutsideDhaka)})

	require.Eventually(t, q.Ready, 2*time.Second, 10*time.Millisecond)
	fee, _ := q.Fee()
	assert.True(t, decimal.RequireFromString("120").Equal(fee),
		"stale inside_dhaka fee applied over current outside_dhaka quote")
}

func TestQuoter_FailureResetsAndPersistsError(t *testing.T) {
	svc := &gatedService{}
	q := NewQuoter(svc)
	ctx := context.Background()

	require.NoError(t, q.SelectZone(ctx, ZoneInsideDhaka, kgLines(1)))
	svc.release(t, 0, quoteResponse{err: errors.New("pricing service down")})

	require.Eventually(t, func() bool { return q.Err() != nil }, 2*time.Second, 10*time.Millisecond)
	_, known := q.Fee()
	assert.False(t, known)
	assert.False(t, q.Ready())

	// The error persists until the next successful quote.
	q.CartChanged(ctx, kgLines(2))
	assert.Error(t, q.Err())

	svc.release(t, 1, quoteResponse{quote: testQuote("40", ZoneInsideDhaka)})
	require.Eventually(t, q.Ready, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, q.Err())
}

func TestQuoter_CartEmptiedClearsQuote(t *testing.T) {
	svc := &gatedService{}
	q := NewQuoter(svc)
	ctx := context.Background()

	require.NoError(t, q.SelectZone(ctx, ZoneInsideDhaka, kgLines(1)))
	svc.release(t, 0, quoteResponse{quote: testQuote("40", ZoneInsideDhaka)})
	require.Eventually(t, q.Ready, 2*time.Second, 10*time.Millisecond)

	q.CartChanged(ctx, nil)

	_, known := q.Fee()
	assert.False(t, known)
	assert.False(t, q.Loading())
	assert.Equal(t, 1, svc.calls(), "empty cart must not trigger a request")
}
