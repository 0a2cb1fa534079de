// Command catalog-ingest loads gzipped supplier product feeds (one JSON
// object per line) into the local storefront snapshot table. Feeds are
// scanned concurrently; a bloom filter suppresses duplicate SKUs across
// files, first occurrence wins.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/machbazar/checkout/internal/storage/postgres"
)

const (
	bloomCapacity = 2_000_000
	bloomFPR      = 0.001
	batchSize     = 500
)

// feedProduct is one supplier feed line. Variants and size categories are
// passed through as raw JSON into the JSONB columns.
type feedProduct struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Unit           string          `json:"unit"`
	Measurement    float64         `json:"measurement"`
	UnitWeightKg   float64         `json:"unitWeightKg"`
	Stock          float64         `json:"stock"`
	Category       string          `json:"category"`
	IsFish         bool            `json:"isFish"`
	Variants       json.RawMessage `json:"variants"`
	SizeCategories json.RawMessage `json:"sizeCategories"`
}

func main() {
	var (
		feedDir     string
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "feeds", "directory containing *.jsonl.gz supplier feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feedDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(feedDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feeds in %s", feedDir)
	}

	slog.Info("scanning feeds", slog.Int("files", len(files)))

	// Scan all files concurrently; each produces its own slice so no
	// cross-file ordering is assumed.
	perFile := make([][]feedProduct, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			products, err := scanFeed(gctx, f)
			if err != nil {
				return errors.Wrapf(err, "scan %s", f)
			}
			perFile[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Merge with first-occurrence-wins dedupe across files.
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var merged []feedProduct
	var dropped int
	for _, products := range perFile {
		for _, p := range products {
			if seen.TestOrAddString(p.ID) {
				dropped++
				continue
			}
			merged = append(merged, p)
		}
	}

	slog.Info("feeds merged",
		slog.Int("products", len(merged)),
		slog.Int("duplicates_dropped", dropped))

	if len(merged) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return upsertProducts(ctx, pool, merged)
}

// scanFeed reads one gzipped JSONL feed. Malformed lines are skipped with a
// warning rather than failing the whole feed.
func scanFeed(ctx context.Context, path string) ([]feedProduct, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	var products []feedProduct
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p feedProduct
		if err := json.Unmarshal(line, &p); err != nil {
			slog.Warn("skipping malformed feed line",
				slog.String("file", path), slog.String("error", err.Error()))
			continue
		}
		if p.ID == "" || p.Name == "" {
			continue
		}
		products = append(products, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	return products, nil
}

const upsertProductSQL = `INSERT INTO products
	(id, name, price, unit, measurement, unit_weight_kg, stock, category_name, is_fish, variants, size_categories, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, price = EXCLUDED.price, unit = EXCLUDED.unit,
		measurement = EXCLUDED.measurement, unit_weight_kg = EXCLUDED.unit_weight_kg,
		stock = EXCLUDED.stock, category_name = EXCLUDED.category_name,
		is_fish = EXCLUDED.is_fish, variants = EXCLUDED.variants,
		size_categories = EXCLUDED.size_categories, updated_at = now()`

func upsertProducts(ctx context.Context, pool interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}, products []feedProduct) error {
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))

		batch := &pgx.Batch{}
		for _, p := range products[start:end] {
			variants := p.Variants
			if len(variants) == 0 {
				variants = json.RawMessage("[]")
			}
			sizeCats := p.SizeCategories
			if len(sizeCats) == 0 {
				sizeCats = json.RawMessage("[]")
			}
			batch.Queue(upsertProductSQL,
				p.ID, p.Name, p.Price, p.Unit, p.Measurement, p.UnitWeightKg,
				p.Stock, p.Category, p.IsFish, []byte(variants), []byte(sizeCats))
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "upsert batch at %d", start)
		}
		slog.Info("batch written", slog.Int("upserted", end))
	}
	return nil
}
