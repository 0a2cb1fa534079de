package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/machbazar/checkout/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, price, unit, measurement, unit_weight_kg, stock,
		category_name, is_fish, variants, size_categories
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, unit, measurement, unit_weight_kg, stock,
		category_name, is_fish, variants, size_categories
		FROM products WHERE id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by the local
// postgres snapshot table.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns all snapshot products ordered by ID.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single snapshot product by its identifier.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p        catalog.Product
		price    decimal.Decimal
		unit     string
		variants []byte
		sizeCats []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &price, &unit, &p.Measurement, &p.UnitWeightKg, &p.Stock,
		&p.CategoryName, &p.IsFish, &variants, &sizeCats,
	)
	if err != nil {
		return p, err
	}
	p.Price = price
	p.Unit = catalog.Unit(unit)

	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return p, errors.Wrapf(err, "unmarshal variants of %q", p.ID)
		}
	}
	if len(sizeCats) > 0 {
		if err := json.Unmarshal(sizeCats, &p.SizeCategories); err != nil {
			return p, errors.Wrapf(err, "unmarshal size categories of %q", p.ID)
		}
	}
	return p, nil
}
