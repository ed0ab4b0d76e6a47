package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/engine"
	"github.com/utafrali/productsearch/internal/query"
	apperrors "github.com/utafrali/productsearch/pkg/errors"
	"github.com/utafrali/productsearch/pkg/httpclient"
)

const backendName = "elasticsearch"

// Config holds the connection settings of the Elasticsearch adapter.
type Config struct {
	URL      string
	Index    string
	Username string
	Password string

	HTTP httpclient.Config

	// Breaker wraps the transport in a circuit breaker when set.
	Breaker *httpclient.CircuitBreakerConfig
}

// Engine is an Elasticsearch-backed implementation of the SearchEngine interface.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

var _ engine.SearchEngine = (*Engine)(nil)

type esHit struct {
	ID     string         `json:"_id"`
	Source domain.Product `json:"_source"`
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]esTermsAggregation `json:"aggregations"`
}

type esTermsAggregation struct {
	SumOtherDocCount int64 `json:"sum_other_doc_count"`
	Buckets          []struct {
		Key      string `json:"key"`
		DocCount int64  `json:"doc_count"`
	} `json:"buckets"`
}

type esGetResponse struct {
	ID     string         `json:"_id"`
	Found  bool           `json:"found"`
	Source domain.Product `json:"_source"`
}

type esBulkItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool                    `json:"errors"`
	Items  []map[string]esBulkItem `json:"items"`
}

// New creates a new Elasticsearch engine for cfg and makes sure the products
// index exists, creating it if necessary. An empty cfg.Index means
// DefaultIndexName.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	e, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := e.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}
	return e, nil
}

// NewClient builds the engine without touching the cluster.
func NewClient(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	if logger == nil {
		logger = slog.Default()
	}

	var transport http.RoundTripper = httpclient.NewTransport(cfg.HTTP)
	if cfg.Breaker != nil {
		transport = httpclient.NewBreakerTransport(transport, *cfg.Breaker, logger)
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{cfg.URL},
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	return &Engine{
		client:    client,
		indexName: cfg.Index,
		logger:    logger,
	}, nil
}

// IndexName returns the index this engine reads and writes.
func (e *Engine) IndexName() string {
	return e.indexName
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return unavailable("ping", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

// EnsureIndex checks whether the products index exists and creates it if not.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.indexName}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return unavailable("check index exists", err)
	}
	closeBody(res)

	// Status 200 means the index exists.
	if res.StatusCode == http.StatusOK {
		e.logger.Info("elasticsearch index already exists", "index", e.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return httpclient.BackendError(res.StatusCode, "", "index existence check failed", backendName)
	}

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return unavailable("create index", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("create index", res)
	}

	e.logger.Info("elasticsearch index created", "index", e.indexName)
	return nil
}

// Index adds or replaces a single product, assigning an ID when it has none.
func (e *Engine) Index(ctx context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal product: %w", err)
	}

	res, err := e.client.Index(
		e.indexName,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(product.ID),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return unavailable("index", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("index", res)
	}

	e.logger.Debug("indexed product", "id", product.ID, "name", product.Name)
	return nil
}

// Get fetches a product by ID.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Product, error) {
	res, err := e.client.Get(e.indexName, id, e.client.Get.WithContext(ctx))
	if err != nil {
		return nil, unavailable("get", err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound("product", id)
	}
	if res.IsError() {
		return nil, responseError("get", res)
	}

	var doc esGetResponse
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("elasticsearch get: decode response: %w", err)
	}
	if !doc.Found {
		return nil, apperrors.NotFound("product", id)
	}
	if doc.Source.ID == "" {
		doc.Source.ID = doc.ID
	}
	return &doc.Source, nil
}

// Delete removes a product from the Elasticsearch index by its ID.
// It does not return an error if the document does not exist (404 is ignored).
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(
		e.indexName,
		id,
		e.client.Delete.WithRefresh("true"),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return unavailable("delete", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}

	e.logger.Debug("deleted product", "id", id)
	return nil
}

// Search executes a structured query against Elasticsearch.
func (e *Engine) Search(ctx context.Context, req engine.SearchRequest) (*engine.SearchResult, error) {
	var esResp esSearchResponse
	if err := e.search(ctx, "search", searchBody(req), &esResp); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		p := hit.Source
		if p.ID == "" {
			p.ID = hit.ID
		}
		products = append(products, p)
	}

	return &engine.SearchResult{
		Hits:  products,
		Total: esResp.Hits.Total.Value,
	}, nil
}

// searchBody builds the request body for req.
func searchBody(req engine.SearchRequest) map[string]any {
	q := req.Query
	if q == nil {
		q = query.MatchAll{}
	}

	body := map[string]any{
		"query":            q.Source(),
		"from":             req.From,
		"size":             req.Size,
		"track_total_hits": true,
	}

	if len(req.Sort) > 0 {
		sorts := make([]any, 0, len(req.Sort))
		for _, s := range req.Sort {
			sorts = append(sorts, map[string]any{
				sortField(s.Field): map[string]any{"order": string(s.Direction)},
			})
		}
		body["sort"] = sorts
	}
	if len(req.Source) > 0 {
		body["_source"] = req.Source
	}
	return body
}

// CountBy runs a terms aggregation over field.
func (e *Engine) CountBy(ctx context.Context, field string, size int) (*engine.TermsResult, error) {
	if size <= 0 {
		size = 10
	}
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"by_field": map[string]any{
				"terms": map[string]any{"field": field, "size": size},
			},
		},
	}

	var esResp esSearchResponse
	if err := e.search(ctx, "aggregate", body, &esResp); err != nil {
		return nil, err
	}

	agg := esResp.Aggregations["by_field"]
	res := &engine.TermsResult{
		Buckets: make([]engine.TermCount, 0, len(agg.Buckets)),
		Other:   agg.SumOtherDocCount,
	}
	for _, b := range agg.Buckets {
		res.Buckets = append(res.Buckets, engine.TermCount{Key: b.Key, Count: b.DocCount})
	}
	return res, nil
}

func (e *Engine) search(ctx context.Context, op string, body map[string]any, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return unavailable(op, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError(op, res)
	}

	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("elasticsearch %s: decode response: %w", op, err)
	}
	return nil
}

// Count returns the number of documents in the index.
func (e *Engine) Count(ctx context.Context) (int64, error) {
	res, err := e.client.Count(
		e.client.Count.WithIndex(e.indexName),
		e.client.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, unavailable("count", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return 0, responseError("count", res)
	}

	var body struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("elasticsearch count: decode response: %w", err)
	}
	return body.Count, nil
}

// Analyze runs text through one of the analyzers configured on the index.
func (e *Engine) Analyze(ctx context.Context, text, analyzer string) ([]engine.Token, error) {
	data, err := json.Marshal(map[string]any{"analyzer": analyzer, "text": text})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch analyze: marshal request: %w", err)
	}

	req := esapi.IndicesAnalyzeRequest{
		Index: e.indexName,
		Body:  bytes.NewReader(data),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, unavailable("analyze", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError("analyze", res)
	}

	var body struct {
		Tokens []engine.Token `json:"tokens"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("elasticsearch analyze: decode response: %w", err)
	}
	if body.Tokens == nil {
		body.Tokens = []engine.Token{}
	}
	return body.Tokens, nil
}

// DeleteIndex removes the entire Elasticsearch index.
// It is intended for testing and administrative operations only.
// A 404 response is treated as success (index already absent).
func (e *Engine) DeleteIndex(ctx context.Context) error {
	res, err := e.client.Indices.Delete(
		[]string{e.indexName},
		e.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return unavailable("delete index", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res)
	}

	e.logger.Info("elasticsearch index deleted", "index", e.indexName)
	return nil
}

// BulkIndex adds or replaces multiple products using the bulk NDJSON API and
// reports the outcome of every item in request order.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.Product) ([]engine.BulkItemResult, error) {
	if len(products) == 0 {
		return []engine.BulkItemResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for i := range products {
		if products[i].ID == "" {
			products[i].ID = uuid.NewString()
		}

		// Action line.
		action := map[string]any{
			"index": map[string]any{
				"_index": e.indexName,
				"_id":    products[i].ID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}

		// Document line.
		if err := enc.Encode(products[i]); err != nil {
			return nil, fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, unavailable("bulk index", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError("bulk index", res)
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return nil, fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}

	results := make([]engine.BulkItemResult, len(products))
	failed := 0
	for i := range products {
		results[i] = engine.BulkItemResult{ID: products[i].ID}
		if i >= len(bulkResp.Items) {
			results[i].Err = apperrors.Internal(fmt.Errorf("bulk response is missing item %d", i))
			failed++
			continue
		}
		item, ok := bulkResp.Items[i]["index"]
		if !ok || item.Error == nil {
			continue
		}
		results[i].Err = httpclient.BackendError(item.Status, item.Error.Type, item.Error.Reason, backendName)
		failed++
	}

	e.logger.Info("bulk indexed products", "count", len(products), "failed", failed)
	return results, nil
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

// unavailable classifies a transport failure. Caller cancellation is passed
// through so it is not reported as a backend outage.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("elasticsearch %s: %w", op, err)
	}
	return apperrors.BackendUnavailable(fmt.Errorf("elasticsearch %s: %w", op, err))
}

func responseError(op string, res *esapi.Response) error {
	return fmt.Errorf("elasticsearch %s: %w", op, httpclient.ParseResponseError(res.StatusCode, res.Body, backendName))
}
