// Package seed loads sample products into an empty index. It is run as a
// separate command and never on server startup.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/service"
)

// Store is the part of the product service the seeder needs.
type Store interface {
	Count(ctx context.Context) (int64, error)
	SaveAll(ctx context.Context, products []domain.Product) ([]domain.Product, error)
}

// Result summarizes a seeding run.
type Result struct {
	Skipped  bool
	Existing int64
	Saved    []domain.Product
	// ByCategory counts the saved products per category.
	ByCategory map[string]int
}

// Seeder writes a product set through a Store.
type Seeder struct {
	store  Store
	logger *slog.Logger
}

// New creates a new seeder.
func New(store Store, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, logger: logger}
}

// Run saves products in bulk requests of at most domain.MaxBatchSize. It
// does nothing when the index already holds products, unless force is set.
// Every chunk is validated before the first one is sent. Item failures of all
// chunks are logged and returned as one *service.BulkError, indexed against
// products, together with the saved subset.
func (s *Seeder) Run(ctx context.Context, products []domain.Product, force bool) (*Result, error) {
	existing, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if existing > 0 && !force {
		s.logger.InfoContext(ctx, "products already exist, skipping seed",
			slog.Int64("existing", existing),
		)
		return &Result{Skipped: true, Existing: existing}, nil
	}

	if err := Validate(products); err != nil {
		return nil, err
	}
	chunks := chunk(products, domain.MaxBatchSize)

	s.logger.InfoContext(ctx, "seeding products",
		slog.Int("count", len(products)),
		slog.Int("batches", len(chunks)),
		slog.Int64("existing", existing),
		slog.Bool("force", force),
	)

	res := &Result{Existing: existing}
	var failed []service.BulkFailure
	for _, c := range chunks {
		saved, err := s.store.SaveAll(ctx, c.items)
		var bulkErr *service.BulkError
		switch {
		case errors.As(err, &bulkErr):
			res.Saved = append(res.Saved, bulkErr.Saved...)
			for _, f := range bulkErr.Failed {
				f.Index += c.start
				failed = append(failed, f)
			}
		case err != nil:
			res.ByCategory = countByCategory(res.Saved)
			return res, fmt.Errorf("seed products %d-%d: %w", c.start, c.start+len(c.items)-1, err)
		default:
			res.Saved = append(res.Saved, saved...)
		}
	}
	res.ByCategory = countByCategory(res.Saved)

	if len(failed) > 0 {
		for _, f := range failed {
			s.logger.ErrorContext(ctx, "failed to seed product",
				slog.Int("index", f.Index),
				slog.String("name", f.Product.Name),
				slog.String("error", f.Err.Error()),
			)
		}
		return res, &service.BulkError{Saved: res.Saved, Failed: failed}
	}

	s.logger.InfoContext(ctx, "seeded products", slog.Int("count", len(res.Saved)))
	for _, category := range sortedKeys(res.ByCategory) {
		s.logger.InfoContext(ctx, "seeded category",
			slog.String("category", category),
			slog.Int("count", res.ByCategory[category]),
		)
	}
	return res, nil
}

// Validate checks products batch by batch, so that inputs larger than
// domain.MaxBatchSize are accepted. An empty input is rejected.
func Validate(products []domain.Product) error {
	if len(products) == 0 {
		return fmt.Errorf("seed products: %w", domain.ValidateBatch(products))
	}
	for _, c := range chunk(products, domain.MaxBatchSize) {
		if err := domain.ValidateBatch(c.items); err != nil {
			return fmt.Errorf("seed products %d-%d: %w", c.start, c.start+len(c.items)-1, err)
		}
	}
	return nil
}

type batch struct {
	start int
	items []domain.Product
}

// chunk splits products into consecutive batches of at most size items.
func chunk(products []domain.Product, size int) []batch {
	var out []batch
	for start := 0; start < len(products); start += size {
		end := min(start+size, len(products))
		out = append(out, batch{start: start, items: products[start:end]})
	}
	return out
}

// LoadFile reads a JSON array of products from path.
func LoadFile(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return products, nil
}

func countByCategory(products []domain.Product) map[string]int {
	counts := make(map[string]int)
	for _, p := range products {
		counts[p.Category]++
	}
	return counts
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
