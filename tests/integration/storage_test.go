//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/catalog"
	"github.com/machbazar/checkout/internal/storage/postgres"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLines() []cart.Line {
	return []cart.Line{
		{
			ProductID: "rice",
			Name:      "Miniket Rice 1kg",
			Quantity:  2,
			UnitPrice: dec("50"),
			Unit:      catalog.UnitPiece,
			Stock:     20,
			Kind:      cart.KindStandard,
		},
		{
			ProductID: "rui",
			Name:      "Rui Fish",
			Quantity:  1.5,
			UnitPrice: dec("300"),
			Unit:      catalog.UnitKilogram,
			Stock:     10,
			IsFish:    true,
			Kind:      cart.KindFish,
			SizeCategories: []catalog.SizeCategory{
				{ID: "medium", Name: "1-2 kg", PricePerKg: dec("300"), MinKg: 1, MaxKg: 2},
			},
		},
	}
}

func TestCartRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCartRepository(pool)
	const session = "it-cart-roundtrip"

	require.NoError(t, repo.Save(ctx, session, testLines()))

	got, err := repo.Load(ctx, session)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rice", got[0].ProductID)
	assert.True(t, dec("50").Equal(got[0].UnitPrice))
	assert.Equal(t, cart.KindFish, got[1].Kind)
	require.Len(t, got[1].SizeCategories, 1)
	assert.True(t, dec("300").Equal(got[1].SizeCategories[0].PricePerKg))

	// Saving again replaces, not appends.
	require.NoError(t, repo.Save(ctx, session, testLines()[:1]))
	got, err = repo.Load(ctx, session)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, repo.Delete(ctx, session))
	got, err = repo.Load(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCartRepository_UnknownSessionIsEmpty(t *testing.T) {
	repo := postgres.NewCartRepository(pool)

	got, err := repo.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_RestoreAcrossInstances(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCartRepository(pool)
	const session = "it-store-restore"

	first := cart.NewStore(session, repo)
	for _, l := range testLines() {
		require.NoError(t, first.Add(ctx, l))
	}

	second := cart.NewStore(session, repo)
	require.NoError(t, second.Restore(ctx))

	assert.Equal(t, 2, second.Count())
	assert.True(t, first.Total().Equal(second.Total()))

	require.NoError(t, second.Clear(ctx))
	third := cart.NewStore(session, repo)
	require.NoError(t, third.Restore(ctx))
	assert.True(t, third.IsEmpty())
}

func seedProducts(t *testing.T, ctx context.Context) {
	t.Helper()

	const insert = `INSERT INTO products
		(id, name, price, unit, measurement, unit_weight_kg, stock, category_name, is_fish, variants, size_categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock`

	_, err := pool.Exec(ctx, insert,
		"it-rice", "Miniket Rice", dec("50"), "pcs", 1.0, 1.0, 20.0, "Grocery", false,
		[]byte(`[{"id":"v5kg","name":"5 kg pack","price":240,"unit":"pcs","measurement":1,"stock":8}]`),
		[]byte(`[]`))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, insert,
		"it-rui", "Rui Fish", dec("300"), "kg", 1.0, 0.0, 10.0, "Fresh Fish", true,
		[]byte(`[]`),
		[]byte(`[{"id":"medium","name":"1-2 kg","pricePerKg":300,"minKg":1,"maxKg":2}]`))
	require.NoError(t, err)
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	seedProducts(t, ctx)
	repo := postgres.NewCatalogRepository(pool)

	t.Run("list", func(t *testing.T) {
		products, err := repo.List(ctx)
		require.NoError(t, err)

		byID := make(map[string]catalog.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}
		require.Contains(t, byID, "it-rice")
		require.Contains(t, byID, "it-rui")
		assert.True(t, dec("50").Equal(byID["it-rice"].Price))
	})

	t.Run("get by id", func(t *testing.T) {
		p, err := repo.GetByID(ctx, "it-rui")
		require.NoError(t, err)

		assert.Equal(t, catalog.UnitKilogram, p.Unit)
		assert.True(t, p.IsFish)
		require.Len(t, p.SizeCategories, 1)
		assert.Equal(t, "medium", p.SizeCategories[0].ID)
		assert.True(t, dec("300").Equal(p.SizeCategories[0].PricePerKg))
	})

	t.Run("variants round-trip", func(t *testing.T) {
		p, err := repo.GetByID(ctx, "it-rice")
		require.NoError(t, err)

		require.Len(t, p.Variants, 1)
		v := p.VariantByID("v5kg")
		require.NotNil(t, v)
		assert.True(t, dec("240").Equal(v.Price))
		assert.InDelta(t, 8, v.Stock, 1e-9)
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "it-absent")
		require.ErrorIs(t, err, catalog.ErrNotFound)
	})
}
