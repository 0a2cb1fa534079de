package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/machbazar/checkout/internal/domain/cart"
)

const (
	saveCartSQL = `INSERT INTO carts (session_id, lines, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET lines = EXCLUDED.lines, updated_at = now()`

	loadCartSQL = `SELECT lines FROM carts WHERE session_id = $1`

	deleteCartSQL = `DELETE FROM carts WHERE session_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository persists cart lines per session so the cart survives
// reloads. Lines are serialized to a JSONB column.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Save upserts the full line set for a session.
func (r *CartRepository) Save(ctx context.Context, sessionID string, lines []cart.Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "marshal cart lines")
	}
	if _, err := r.pool.Exec(ctx, saveCartSQL, sessionID, data); err != nil {
		return errors.Wrapf(err, "save cart %q", sessionID)
	}
	return nil
}

// Load returns the persisted lines for a session; an absent session yields
// an empty cart, not an error.
func (r *CartRepository) Load(ctx context.Context, sessionID string) ([]cart.Line, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, loadCartSQL, sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load cart %q", sessionID)
	}

	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, errors.Wrapf(err, "unmarshal cart %q", sessionID)
	}
	return lines, nil
}

// Delete removes the persisted cart for a session.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, deleteCartSQL, sessionID); err != nil {
		return errors.Wrapf(err, "delete cart %q", sessionID)
	}
	return nil
}
