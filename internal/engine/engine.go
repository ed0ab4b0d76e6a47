package engine

import (
	"context"

	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/query"
)

// SearchRequest is one paged query against the index.
type SearchRequest struct {
	Query query.Node
	From  int
	Size  int
	Sort  []domain.SortOrder
	// Source limits the returned document fields; empty returns all.
	Source []string
}

// SearchResult is one page of hits plus the total number of matches.
type SearchResult struct {
	Hits  []domain.Product
	Total int64
}

// BulkItemResult is the outcome of one document of a bulk write, in request order.
type BulkItemResult struct {
	ID  string
	Err error
}

// TermCount is one bucket of a terms aggregation.
type TermCount struct {
	Key   string
	Count int64
}

// TermsResult holds the top buckets of a terms aggregation. Other counts the
// documents that fell outside the returned buckets.
type TermsResult struct {
	Buckets []TermCount
	Other   int64
}

// Token is one token produced by an analyzer.
type Token struct {
	Token       string `json:"token"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Type        string `json:"type"`
	Position    int    `json:"position"`
}

// SearchEngine defines the interface for storing and querying products.
// Implementations may use Elasticsearch, in-memory storage, or other backends.
// Failures to reach the backend wrap apperrors.ErrBackendUnavailable.
type SearchEngine interface {
	// Index adds or replaces a product. A product without an ID gets a new
	// one, written back into product.
	Index(ctx context.Context, product *domain.Product) error

	// BulkIndex indexes products in one round trip, assigning missing IDs in
	// place, and reports the outcome of every item.
	BulkIndex(ctx context.Context, products []domain.Product) ([]BulkItemResult, error)

	// Get returns the product with id or an error matching apperrors.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Product, error)

	// Delete removes a product. Deleting a missing product succeeds.
	Delete(ctx context.Context, id string) error

	// Search executes a structured query.
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)

	// CountBy aggregates the document count per value of a keyword field,
	// returning at most size buckets.
	CountBy(ctx context.Context, field string, size int) (*TermsResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int64, error)

	// Analyze runs text through a configured analyzer.
	Analyze(ctx context.Context, text, analyzer string) ([]Token, error)

	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}
