package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/engine"
	"github.com/utafrali/productsearch/internal/query"
	apperrors "github.com/utafrali/productsearch/pkg/errors"
	"github.com/utafrali/productsearch/pkg/pagination"
)

// DefaultMaxBuckets is the default cap on category buckets returned by
// AggregateByCategory.
const DefaultMaxBuckets = 1000

// ProductService is the single entry point for product CRUD and search. It
// never caches and never retries; every call goes to the engine with the
// caller's context.
type ProductService struct {
	engine     engine.SearchEngine
	logger     *slog.Logger
	maxBuckets int
	now        func() time.Time
}

// Option configures a ProductService.
type Option func(*ProductService)

// WithMaxBuckets caps the buckets of the category aggregation.
func WithMaxBuckets(n int) Option {
	return func(s *ProductService) {
		if n > 0 {
			s.maxBuckets = n
		}
	}
}

// WithClock overrides the time source used for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ProductService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewProductService creates a new product service.
func NewProductService(eng engine.SearchEngine, logger *slog.Logger, opts ...Option) *ProductService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProductService{
		engine:     eng,
		logger:     logger,
		maxBuckets: DefaultMaxBuckets,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BulkFailure is one item a bulk save could not store.
type BulkFailure struct {
	Index   int            `json:"index"`
	Product domain.Product `json:"product"`
	Err     error          `json:"-"`
}

// BulkError reports a bulk save in which some items failed. Saved holds the
// items that were stored. It matches apperrors.ErrPartialFailure.
type BulkError struct {
	Saved  []domain.Product
	Failed []BulkFailure
}

func (e *BulkError) Error() string {
	total := len(e.Saved) + len(e.Failed)
	if len(e.Failed) == 0 {
		return fmt.Sprintf("bulk save: 0 of %d items failed", total)
	}
	return fmt.Sprintf("bulk save: %d of %d items failed: %v", len(e.Failed), total, e.Failed[0].Err)
}

func (e *BulkError) Unwrap() error {
	return apperrors.ErrPartialFailure
}

// Save validates and stores a product. A product without an ID is created
// with a new one; otherwise the stored document is replaced.
func (s *ProductService) Save(ctx context.Context, product domain.Product) (_ *domain.Product, err error) {
	ctx, finish := observe(ctx, "Save", "")
	defer func() { finish(err) }()

	if err := product.Validate(); err != nil {
		return nil, err
	}
	product.Touch(s.now())

	if err := s.engine.Index(ctx, &product); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}

	s.logger.InfoContext(ctx, "product saved",
		slog.String("product_id", product.ID),
		slog.String("name", product.Name),
	)
	return &product, nil
}

// SaveAll validates the whole batch before sending anything, then stores it in
// one bulk request. If the engine rejects some items the stored subset is
// returned together with a *BulkError.
func (s *ProductService) SaveAll(ctx context.Context, products []domain.Product) (_ []domain.Product, err error) {
	ctx, finish := observe(ctx, "SaveAll", "")
	defer func() { finish(err) }()

	if err := domain.ValidateBatch(products); err != nil {
		return nil, err
	}

	batch := make([]domain.Product, len(products))
	now := s.now()
	for i := range products {
		batch[i] = products[i]
		batch[i].Touch(now)
	}

	results, err := s.engine.BulkIndex(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("save products: %w", err)
	}

	saved := make([]domain.Product, 0, len(batch))
	var failed []BulkFailure
	for i := range batch {
		if i < len(results) && results[i].Err != nil {
			failed = append(failed, BulkFailure{Index: i, Product: batch[i], Err: results[i].Err})
			continue
		}
		saved = append(saved, batch[i])
	}

	if len(failed) > 0 {
		s.logger.WarnContext(ctx, "bulk save partially failed",
			slog.Int("saved", len(saved)),
			slog.Int("failed", len(failed)),
			slog.String("first_error", failed[0].Err.Error()),
		)
		return saved, &BulkError{Saved: saved, Failed: failed}
	}

	s.logger.InfoContext(ctx, "bulk save completed", slog.Int("count", len(saved)))
	return saved, nil
}

// FindByID returns the product with id, or nil and no error when it does not
// exist.
func (s *ProductService) FindByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, finish := observe(ctx, "FindByID", "")
	defer func() { finish(err) }()

	if strings.TrimSpace(id) == "" {
		return nil, apperrors.InvalidArgument("id must not be empty")
	}

	p, err := s.engine.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return p, nil
}

// FindAll returns one page of all products in the requested order.
func (s *ProductService) FindAll(ctx context.Context, page domain.PageRequest) (_ pagination.Result[domain.Product], err error) {
	ctx, finish := observe(ctx, "FindAll", "")
	defer func() { finish(err) }()

	res, err := s.engine.Search(ctx, engine.SearchRequest{
		Query: query.MatchAll{},
		From:  page.Offset,
		Size:  page.Size,
		Sort:  page.Orders(),
	})
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("find products: %w", err)
	}
	return pagination.NewResult(res.Hits, res.Total, page.Params), nil
}

// DeleteByID removes a product. Deleting a missing product succeeds.
func (s *ProductService) DeleteByID(ctx context.Context, id string) (err error) {
	ctx, finish := observe(ctx, "DeleteByID", "")
	defer func() { finish(err) }()

	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidArgument("id must not be empty")
	}
	if err := s.engine.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// Search runs strategy with params and returns the requested page. A query
// that can match nothing, such as an inverted price range, returns an empty
// page without calling the engine.
func (s *ProductService) Search(ctx context.Context, strategy domain.Strategy, params domain.SearchParams, page domain.PageRequest) (_ pagination.Result[domain.Product], err error) {
	ctx, finish := observe(ctx, "Search", string(strategy))
	defer func() { finish(err) }()

	node, err := query.Build(strategy, params)
	if err != nil {
		return pagination.Result[domain.Product]{}, err
	}
	if _, none := node.(query.MatchNone); none {
		return pagination.Empty[domain.Product](page.Params), nil
	}

	res, err := s.engine.Search(ctx, engine.SearchRequest{
		Query: node,
		From:  page.Offset,
		Size:  page.Size,
		Sort:  page.Orders(),
	})
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("search %s: %w", strategy, err)
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("strategy", string(strategy)),
		slog.Int64("total", res.Total),
		slog.Int("page", page.Page),
	)
	return pagination.NewResult(res.Hits, res.Total, page.Params), nil
}

// AggregateByCategory returns the number of products per category using the
// engine's terms aggregation. At most the configured number of buckets is
// returned; a truncated result is logged.
func (s *ProductService) AggregateByCategory(ctx context.Context) (_ map[string]int64, err error) {
	ctx, finish := observe(ctx, "AggregateByCategory", "")
	defer func() { finish(err) }()

	res, err := s.engine.CountBy(ctx, query.FieldCategory, s.maxBuckets)
	if err != nil {
		return nil, fmt.Errorf("aggregate by category: %w", err)
	}

	if res.Other > 0 {
		AggregationTruncatedTotal.Inc()
		s.logger.WarnContext(ctx, "category aggregation truncated",
			slog.Int("max_buckets", s.maxBuckets),
			slog.Int64("uncounted_documents", res.Other),
		)
	}

	out := make(map[string]int64, len(res.Buckets))
	for _, b := range res.Buckets {
		out[b.Key] = b.Count
	}
	return out, nil
}

// Suggest returns up to query.SuggestSize distinct product names matching
// prefix, best match first. An empty prefix yields an empty list.
func (s *ProductService) Suggest(ctx context.Context, prefix string) (_ []string, err error) {
	ctx, finish := observe(ctx, "Suggest", string(domain.StrategyPrefixSuggest))
	defer func() { finish(err) }()

	if strings.TrimSpace(prefix) == "" {
		return []string{}, nil
	}

	node, err := query.Build(domain.StrategyPrefixSuggest, domain.SearchParams{Term: prefix})
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Search(ctx, engine.SearchRequest{
		Query: node,
		Size:  query.SuggestSize,
		Sort: []domain.SortOrder{
			{Field: domain.FieldScore, Direction: domain.SortDesc},
			{Field: domain.FieldID, Direction: domain.SortAsc},
		},
		Source: []string{domain.FieldName},
	})
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	// Deduplicate names while preserving order.
	seen := make(map[string]struct{}, len(res.Hits))
	names := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if _, exists := seen[hit.Name]; exists {
			continue
		}
		seen[hit.Name] = struct{}{}
		names = append(names, hit.Name)
	}
	return names, nil
}

var analyzers = map[string]bool{
	query.AnalyzerMorphological:       true,
	query.AnalyzerMorphologicalSearch: true,
	query.AnalyzerStandard:            true,
	query.AnalyzerEdgeNGram:           true,
}

// Analyze shows how analyzer tokenizes text. An empty analyzer means the
// morphological one.
func (s *ProductService) Analyze(ctx context.Context, text, analyzer string) (_ []engine.Token, err error) {
	ctx, finish := observe(ctx, "Analyze", "")
	defer func() { finish(err) }()

	if strings.TrimSpace(text) == "" {
		return nil, apperrors.InvalidArgument("text must not be empty")
	}
	if analyzer == "" {
		analyzer = query.AnalyzerMorphological
	}
	if !analyzers[analyzer] {
		return nil, apperrors.InvalidArgument("unsupported analyzer %q", analyzer)
	}

	tokens, err := s.engine.Analyze(ctx, text, analyzer)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return tokens, nil
}

// Count returns the number of stored products.
func (s *ProductService) Count(ctx context.Context) (_ int64, err error) {
	ctx, finish := observe(ctx, "Count", "")
	defer func() { finish(err) }()

	n, err := s.engine.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}
