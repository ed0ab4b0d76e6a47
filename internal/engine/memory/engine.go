package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/engine"
	"github.com/utafrali/productsearch/internal/query"
	apperrors "github.com/utafrali/productsearch/pkg/errors"
)

// Engine is an in-memory implementation of the SearchEngine interface.
// It evaluates the same query nodes the Elasticsearch adapter sends, using
// approximate analyzers. Thread-safe via sync.RWMutex.
type Engine struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

var _ engine.SearchEngine = (*Engine)(nil)

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		products: make(map[string]domain.Product),
	}
}

// Index adds or replaces a single product, assigning an ID when it has none.
func (e *Engine) Index(_ context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.products[product.ID] = clone(*product)
	return nil
}

// BulkIndex adds or replaces multiple products. Every item succeeds.
func (e *Engine) BulkIndex(_ context.Context, products []domain.Product) ([]engine.BulkItemResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	results := make([]engine.BulkItemResult, len(products))
	for i := range products {
		if products[i].ID == "" {
			products[i].ID = uuid.NewString()
		}
		e.products[products[i].ID] = clone(products[i])
		results[i] = engine.BulkItemResult{ID: products[i].ID}
	}
	return results, nil
}

// Get returns a copy of the stored product.
func (e *Engine) Get(_ context.Context, id string) (*domain.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	out := clone(p)
	return &out, nil
}

// Delete removes a product from the in-memory index by its ID.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.products, id)
	return nil
}

type hit struct {
	product domain.Product
	score   float64
}

// Search evaluates req.Query against every stored product.
func (e *Engine) Search(_ context.Context, req engine.SearchRequest) (*engine.SearchResult, error) {
	if req.Query == nil {
		req.Query = query.MatchAll{}
	}

	e.mu.RLock()
	matched := make([]hit, 0)
	for _, p := range e.products {
		score, ok := evaluate(req.Query, p)
		if !ok {
			continue
		}
		matched = append(matched, hit{product: p, score: score})
	}
	e.mu.RUnlock()

	sortHits(matched, req.Sort)

	total := len(matched)
	from := req.From
	if from < 0 {
		from = 0
	}
	if from > total {
		from = total
	}
	end := total
	if req.Size >= 0 && from+req.Size < total {
		end = from + req.Size
	}

	hits := make([]domain.Product, 0, end-from)
	for _, h := range matched[from:end] {
		hits = append(hits, project(clone(h.product), req.Source))
	}

	return &engine.SearchResult{Hits: hits, Total: int64(total)}, nil
}

// CountBy counts documents per value of a keyword field. Buckets are ordered
// by count descending, then key ascending.
func (e *Engine) CountBy(_ context.Context, field string, size int) (*engine.TermsResult, error) {
	if kindOf(field) != kindKeyword {
		return nil, apperrors.InvalidArgument("field %q cannot be aggregated", field)
	}

	e.mu.RLock()
	counts := make(map[string]int64)
	for _, p := range e.products {
		seen := make(map[string]bool)
		for _, v := range fieldValues(p, field) {
			if seen[v] {
				continue
			}
			seen[v] = true
			counts[v]++
		}
	}
	e.mu.RUnlock()

	buckets := make([]engine.TermCount, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, engine.TermCount{Key: k, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})

	res := &engine.TermsResult{Buckets: buckets}
	if size >= 0 && len(buckets) > size {
		for _, b := range buckets[size:] {
			res.Other += b.Count
		}
		res.Buckets = buckets[:size]
	}
	return res, nil
}

// Count returns the number of stored products.
func (e *Engine) Count(_ context.Context) (int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return int64(len(e.products)), nil
}

// Analyze tokenizes text the way the named analyzer approximately would.
func (e *Engine) Analyze(_ context.Context, text, analyzer string) ([]engine.Token, error) {
	switch analyzer {
	case query.AnalyzerMorphological, query.AnalyzerMorphologicalSearch, query.AnalyzerStandard:
		return tokenize(text), nil
	case query.AnalyzerEdgeNGram:
		return edgeNGrams(tokenize(text)), nil
	default:
		return nil, apperrors.InvalidArgument("unknown analyzer %q", analyzer)
	}
}

// Ping always succeeds.
func (e *Engine) Ping(_ context.Context) error {
	return nil
}

// Reset drops every stored product.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.products = make(map[string]domain.Product)
}

func clone(p domain.Product) domain.Product {
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	return p
}

// project keeps only the listed fields; the id is always kept.
func project(p domain.Product, fields []string) domain.Product {
	if len(fields) == 0 {
		return p
	}
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}
	out := domain.Product{ID: p.ID}
	if keep[domain.FieldName] {
		out.Name = p.Name
	}
	if keep["description"] {
		out.Description = p.Description
	}
	if keep[domain.FieldCategory] {
		out.Category = p.Category
	}
	if keep[domain.FieldPrice] {
		out.Price = p.Price
	}
	if keep[domain.FieldStock] {
		out.Stock = p.Stock
	}
	if keep[domain.FieldBrand] {
		out.Brand = p.Brand
	}
	if keep[domain.FieldTags] {
		out.Tags = p.Tags
	}
	if keep[domain.FieldCreatedAt] {
		out.CreatedAt = p.CreatedAt
	}
	if keep[domain.FieldUpdatedAt] {
		out.UpdatedAt = p.UpdatedAt
	}
	return out
}

func sortHits(hits []hit, orders []domain.SortOrder) {
	if len(orders) == 0 {
		orders = []domain.SortOrder{
			{Field: domain.FieldScore, Direction: domain.SortDesc},
			{Field: domain.FieldID, Direction: domain.SortAsc},
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, o := range orders {
			c := compare(hits[i], hits[j], o.Field)
			if c == 0 {
				continue
			}
			if o.Direction == domain.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return hits[i].product.ID < hits[j].product.ID
	})
}

func compare(a, b hit, field string) int {
	switch field {
	case domain.FieldScore:
		return cmpFloat(a.score, b.score)
	case domain.FieldPrice:
		return cmpFloat(a.product.Price, b.product.Price)
	case domain.FieldStock:
		return cmpFloat(float64(a.product.Stock), float64(b.product.Stock))
	case domain.FieldCreatedAt:
		return a.product.CreatedAt.Compare(b.product.CreatedAt)
	case domain.FieldUpdatedAt:
		return a.product.UpdatedAt.Compare(b.product.UpdatedAt)
	case domain.FieldName:
		return strings.Compare(a.product.Name, b.product.Name)
	case domain.FieldCategory:
		return strings.Compare(a.product.Category, b.product.Category)
	case domain.FieldBrand:
		return strings.Compare(a.product.Brand, b.product.Brand)
	case domain.FieldID:
		return strings.Compare(a.product.ID, b.product.ID)
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
