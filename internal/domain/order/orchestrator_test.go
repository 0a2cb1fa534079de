package order

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
	"github.com/machbazar/checkout/internal/domain/checkout"
	"github.com/machbazar/checkout/internal/domain/shipping"
)

// callRecorder tracks submission order across both backends.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *callRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type mockOrderAPI struct {
	rec   *callRecorder
	id    string
	err   error
	last  *Order
	block chan struct{} // when non-nil, Create waits on it
}

func (m *mockOrderAPI) Create(_ context.Context, o *Order) (string, error) {
	m.rec.record("regular")
	m.last = o
	if m.block != nil {
		<-m.block
	}
	return m.id, m.err
}

type mockFishAPI struct {
	rec  *callRecorder
	id   string
	err  error
	last *FishOrder
}

func (m *mockFishAPI) Create(_ context.Context, o *FishOrder) (string, error) {
	m.rec.record("fish")
	m.last = o
	return m.id, m.err
}

func mixedCart() []cart.Line {
	return []cart.Line{
		{
			ProductID: "rice",
			Name:      "Rice",
			Quantity:  2,
			UnitPrice: dec("50"),
			Unit:      catalog.UnitPiece,
			Kind:      cart.KindStandard,
		},
		{
			ProductID: "rui",
			Name:      "Rui Fish",
			Quantity:  1.5,
			UnitPrice: dec("300"),
			Unit:      catalog.UnitKilogram,
			Kind:      cart.KindFish,
			SizeCategories: []catalog.SizeCategory{
				{ID: "medium", PricePerKg: dec("300")},
			},
		},
	}
}

func placementRequest(lines []cart.Line, fee string) Request {
	return Request{
		Lines: lines,
		Quote: shipping.Quote{
			Zone:          shipping.ZoneInsideDhaka,
			TotalWeightKg: 1.5,
			Fee:           dec(fee),
		},
		Address:  checkout.Address{Name: "Rahim", Phone: "01712345678"},
		Customer: Identity{Name: "Rahim", Phone: "01712345678"},
	}
}

func TestPlace_EmptyCart(t *testing.T) {
	o := NewOrchestrator(&mockOrderAPI{rec: &callRecorder{}}, &mockFishAPI{rec: &callRecorder{}})

	_, err := o.Place(context.Background(), placementRequest(nil, "0"))
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlace_MixedCartSubmitsRegularThenFish(t *testing.T) {
	rec := &callRecorder{}
	orders := &mockOrderAPI{rec: rec, id: "R1"}
	fish := &mockFishAPI{rec: rec, id: "F1"}
	o := NewOrchestrator(orders, fish)

	res, err := o.Place(context.Background(), placementRequest(mixedCart(), "40"))
	require.NoError(t, err)

	assert.Equal(t, []string{"regular", "fish"}, rec.all())
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "R1", res.OrderID)
	assert.Equal(t, "F1", res.FishOrderID)
	assert.Equal(t, "R1", res.PrimaryID, "primary id is the standard order's")
	assert.Equal(t, StateSucceeded, o.State())

	// Pricing per partition: 2×50 regular, 1.5×300 fish, fee split evenly
	// across the two lines.
	assert.True(t, dec("100").Equal(orders.last.TotalPrice))
	assert.True(t, dec("450").Equal(fish.last.TotalPrice))
	assert.True(t, dec("20").Equal(orders.last.ShippingFee))
	assert.True(t, dec("20").Equal(fish.last.ShippingFee))
}

func TestPlace_OnlyStandardLinesIssuesOneCall(t *testing.T) {
	rec := &callRecorder{}
	o := NewOrchestrator(&mockOrderAPI{rec: rec, id: "R1"}, &mockFishAPI{rec: rec})

	res, err := o.Place(context.Background(), placementRequest(mixedCart()[:1], "40"))
	require.NoError(t, err)

	assert.Equal(t, []string{"regular"}, rec.all())
	assert.Equal(t, "R1", res.PrimaryID)
}

func TestPlace_OnlyFishLinesIssuesOneCall(t *testing.T) {
	rec := &callRecorder{}
	fish := &mockFishAPI{rec: rec, id: "F1"}
	o := NewOrchestrator(&mockOrderAPI{rec: rec}, fish)

	res, err := o.Place(context.Background(), placementRequest(mixedCart()[1:], "40"))
	require.NoError(t, err)

	assert.Equal(t, []string{"fish"}, rec.all())
	assert.Equal(t, "F1", res.PrimaryID, "primary falls back to the fish order id")
	assert.True(t, dec("40").Equal(fish.last.ShippingFee), "sole partition carries the whole fee")
}

func TestPlace_RegularFailureAbortsBeforeFish(t *testing.T) {
	rec := &callRecorder{}
	o := NewOrchestrator(
		&mockOrderAPI{rec: rec, err: errors.New("backend 500")},
		&mockFishAPI{rec: rec, id: "F1"},
	)

	_, err := o.Place(context.Background(), placementRequest(mixedCart(), "40"))

	require.Error(t, err)
	var subErr *SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "regular", subErr.Partition)
	assert.True(t, subErr.FishPending, "combined failure must mention the unattempted fish order")
	assert.Equal(t, []string{"regular"}, rec.all(), "no fish order may be attempted after a regular failure")
	assert.Equal(t, StateFailed, o.State())
}

func TestPlace_RegularFailureWithoutFishLines(t *testing.T) {
	rec := &callRecorder{}
	o := NewOrchestrator(&mockOrderAPI{rec: rec, err: errors.New("backend 500")}, &mockFishAPI{rec: rec})

	_, err := o.Place(context.Background(), placementRequest(mixedCart()[:1], "40"))

	var subErr *SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.False(t, subErr.FishPending)
}

func TestPlace_FishFailureAfterRegularSuccessIsPartialSuccess(t *testing.T) {
	rec := &callRecorder{}
	o := NewOrchestrator(
		&mockOrderAPI{rec: rec, id: "R1"},
		&mockFishAPI{rec: rec, err: errors.New("fish backend down")},
	)

	res, err := o.Place(context.Background(), placementRequest(mixedCart(), "40"))

	// Partial success is a result, not an error: never plain failure.
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, StatePartialSuccess, res.State)
	assert.Equal(t, "R1", res.SupportReference)
	assert.Equal(t, "R1", res.PrimaryID)
	assert.Empty(t, res.FishOrderID)
	require.Error(t, res.Err)
	assert.Equal(t, StatePartialSuccess, o.State())
}

func TestPlace_FishOnlyFailureIsPlainFailure(t *testing.T) {
	rec := &callRecorder{}
	o := NewOrchestrator(&mockOrderAPI{rec: rec}, &mockFishAPI{rec: rec, err: errors.New("down")})

	_, err := o.Place(context.Background(), placementRequest(mixedCart()[1:], "40"))

	var subErr *SubmitError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "fish", subErr.Partition)
	assert.Equal(t, StateFailed, o.State())
}

func TestPlace_SizeCategoryValidationBeforeAnyNetworkCall(t *testing.T) {
	rec := &callRecorder{}
	o := NewOrchestrator(&mockOrderAPI{rec: rec, id: "R1"}, &mockFishAPI{rec: rec})

	lines := mixedCart()
	lines[1].SizeCategories = nil
	lines[1].VariantID = ""

	_, err := o.Place(context.Background(), placementRequest(lines, "40"))

	var scErr *UnresolvedSizeCategoryError
	require.ErrorAs(t, err, &scErr)
	assert.Empty(t, rec.all(), "validation errors must precede every network call")
}

func TestPlace_ReentrancyLatch(t *testing.T) {
	rec := &callRecorder{}
	block := make(chan struct{})
	orders := &mockOrderAPI{rec: rec, id: "R1", block: block}
	o := NewOrchestrator(orders, &mockFishAPI{rec: rec, id: "F1"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := o.Place(context.Background(), placementRequest(mixedCart(), "40"))
		assert.NoError(t, err)
	}()

	// Wait until the first attempt is inside the backend call.
	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := o.Place(context.Background(), placementRequest(mixedCart(), "40"))
	require.ErrorIs(t, err, ErrPlacementInFlight)

	close(block)
	<-done

	// Exactly one set of network calls, and the latch is released for the
	// next user-initiated attempt.
	assert.Equal(t, []string{"regular", "fish"}, rec.all())
	assert.False(t, o.inFlight.Load())
}

func TestSubmitError_Messages(t *testing.T) {
	combined := &SubmitError{Partition: "regular", FishPending: true, Err: errors.New("timeout")}
	assert.Contains(t, combined.Error(), "fish items were not submitted")

	plain := &SubmitError{Partition: "fish", Err: errors.New("timeout")}
	assert.Contains(t, plain.Error(), "fish order")
	assert.ErrorIs(t, plain, plain.Err)
}

func TestGrandTotalScenario(t *testing.T) {
	// Cart total 100 + 450, quote fee 40: the displayed grand total is 590.
	lines := mixedCart()
	cartTotal := decimal.Zero
	for _, l := range lines {
		cartTotal = cartTotal.Add(l.Subtotal())
	}
	assert.True(t, dec("590").Equal(cartTotal.Add(dec("40"))))
}
