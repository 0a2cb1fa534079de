package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/machbazar/checkout/internal/client"
	"github.com/machbazar/checkout/internal/domain/cart"
	"github.com/machbazar/checkout/internal/domain/catalog"
	"github.com/machbazar/checkout/internal/domain/order"
	"github.com/machbazar/checkout/internal/domain/shipping"
	"github.com/machbazar/checkout/internal/handler"
	"github.com/machbazar/checkout/internal/storage/postgres"
	"github.com/machbazar/checkout/pkg/availability"
)

// App is one user's fully wired checkout session: cart, quoter, orchestrator,
// and the availability monitor for the consumed backends.
type App struct {
	Handler      *handler.Handler
	Catalog      catalog.Repository // nil without a database
	Availability *availability.Monitor

	pool *pgxpool.Pool
}

// Build creates all dependencies for a checkout session. It is the single
// wiring point for embedding UIs and tooling.
func Build(ctx context.Context, cfg *Config, sessionID string) (*App, error) {
	lg := zctx.From(ctx)
	lg.Info("Initializing checkout session", zap.String("session_id", sessionID))

	a := &App{}

	var cartRepo cart.Repository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		a.pool = pool
		a.Catalog = postgres.NewCatalogRepository(pool)
		cartRepo = postgres.NewCartRepository(pool)
	} else {
		lg.Warn("No database configured, cart will not survive reloads")
	}

	store := cart.NewStore(sessionID, cartRepo)
	if err := store.Restore(ctx); err != nil {
		// A failed restore degrades to an empty cart rather than blocking
		// the storefront.
		lg.Warn("Cart restore failed", zap.Error(err))
	}

	quoter := shipping.NewQuoter(client.NewShippingClient(client.Options{
		BaseURL:   cfg.Backend.ShippingURL,
		AuthToken: cfg.Backend.AuthToken,
	}))
	orch := order.NewOrchestrator(
		client.NewOrderClient(client.Options{
			BaseURL:   cfg.Backend.OrderURL,
			AuthToken: cfg.Backend.AuthToken,
		}),
		client.NewFishOrderClient(client.Options{
			BaseURL:   cfg.Backend.FishOrderURL,
			AuthToken: cfg.Backend.AuthToken,
		}),
	)
	a.Handler = handler.New(store, quoter, orch)

	probeClient := &http.Client{Timeout: 5 * time.Second}
	a.Availability = availability.NewMonitor()
	a.Availability.Add("shipping", 5*time.Second,
		availability.PingURL(probeClient, cfg.Backend.ShippingURL))
	a.Availability.Add("orders", 5*time.Second,
		availability.PingURL(probeClient, cfg.Backend.OrderURL))
	if a.pool != nil {
		a.Availability.Add("database", 2*time.Second, a.pool.Ping)
	}
	a.Availability.Start(ctx, 30*time.Second)

	return a, nil
}

// Close stops the availability probes and releases the database pool.
func (a *App) Close() {
	a.Availability.Stop()
	if a.pool != nil {
		a.pool.Close()
	}
}
