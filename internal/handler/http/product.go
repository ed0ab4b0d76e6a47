package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/query"
	"github.com/utafrali/productsearch/internal/service"
	apperrors "github.com/utafrali/productsearch/pkg/errors"
	"github.com/utafrali/productsearch/pkg/httputil"
	"github.com/utafrali/productsearch/pkg/pagination"
	"github.com/utafrali/productsearch/pkg/validator"
)

const (
	maxBodyBytes     = 1 << 20
	maxBulkBodyBytes = 10 << 20
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ProductRequest is the JSON request body for saving a product. A request
// carrying an id replaces the stored product. The name limit is
// domain.MaxNameLength.
type ProductRequest struct {
	ID          string     `json:"id"`
	Name        string     `json:"name" validate:"required,notblank,max=512"`
	Description string     `json:"description" validate:"required,notblank"`
	Category    string     `json:"category" validate:"max=256"`
	Price       float64    `json:"price" validate:"gte=0"`
	Stock       int        `json:"stock" validate:"gte=0"`
	Brand       string     `json:"brand" validate:"max=256"`
	Tags        []string   `json:"tags" validate:"omitempty,max=100,dive,max=256"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

func (req ProductRequest) toDomain() domain.Product {
	p := domain.Product{
		ID:          strings.TrimSpace(req.ID),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		Brand:       req.Brand,
		Tags:        req.Tags,
	}
	if req.CreatedAt != nil {
		p.CreatedAt = req.CreatedAt.UTC()
	}
	if req.UpdatedAt != nil {
		p.UpdatedAt = req.UpdatedAt.UTC()
	}
	return p
}

// bulkRequest wraps the JSON array of a bulk save so that item errors are
// reported as items[i].field.
type bulkRequest struct {
	Items []ProductRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

// --- Response DTOs ---

type bulkFailureResponse struct {
	Index   int            `json:"index"`
	Product domain.Product `json:"product"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
}

type bulkResponse struct {
	Saved  []domain.Product      `json:"saved"`
	Failed []bulkFailureResponse `json:"failed"`
}

type analyzeResponse struct {
	Text     string `json:"text"`
	Analyzer string `json:"analyzer"`
	Tokens   any    `json:"tokens"`
}

// --- CRUD handlers ---

// Create handles POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := httputil.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.Save(r.Context(), req.toDomain())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// BulkCreate handles POST /api/products/bulk. The body is a JSON array of
// products. When some items fail the response is 207 with both the saved
// and the failed items.
func (h *ProductHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := httputil.DecodeJSON(w, r, &req.Items, maxBulkBodyBytes); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	products := make([]domain.Product, 0, len(req.Items))
	for _, item := range req.Items {
		products = append(products, item.toDomain())
	}

	saved, err := h.service.SaveAll(r.Context(), products)
	var bulkErr *service.BulkError
	if errors.As(err, &bulkErr) {
		resp := bulkResponse{Saved: bulkErr.Saved, Failed: make([]bulkFailureResponse, 0, len(bulkErr.Failed))}
		if resp.Saved == nil {
			resp.Saved = []domain.Product{}
		}
		for _, f := range bulkErr.Failed {
			resp.Failed = append(resp.Failed, bulkFailureResponse{
				Index:   f.Index,
				Product: f.Product,
				Code:    apperrors.Code(f.Err),
				Message: f.Err.Error(),
			})
		}
		httputil.WriteJSON(w, http.StatusMultiStatus, httputil.Response{
			Data: resp,
			Error: &httputil.ErrorResponse{
				Code:    apperrors.CodePartialFailure,
				Message: bulkErr.Error(),
			},
		})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: saved})
}

// Get handles GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if product == nil {
		httputil.WriteError(w, r, apperrors.NotFound("product", id), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// List handles GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	q := r.URL.Query()
	page, err := domain.NewPageRequest(params, q.Get("sortBy"), q.Get("sortDirection"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.FindAll(r.Context(), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Delete handles DELETE /api/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteByID(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Search handlers ---

// SearchPage returns a handler that runs strategy and responds with a page.
// read extracts the strategy's parameters from the query string.
func (h *ProductHandler) SearchPage(strategy domain.Strategy, read func(*http.Request) (domain.SearchParams, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := read(r)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		pageParams, err := pagination.FromRequest(r)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		page, err := domain.RelevancePage(pageParams)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		result, err := h.service.Search(r.Context(), strategy, params, page)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
	}
}

// SearchList returns a handler that runs strategy over the first page of the
// default size and responds with the bare list of products.
func (h *ProductHandler) SearchList(strategy domain.Strategy, read func(*http.Request) (domain.SearchParams, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := read(r)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		page, err := domain.RelevancePage(pagination.DefaultParams())
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		result, err := h.service.Search(r.Context(), strategy, params, page)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		products := result.Content
		if products == nil {
			products = []domain.Product{}
		}
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
	}
}

// Suggest handles GET /api/products/suggest and /api/products/suggest/nori
func (h *ProductHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.Suggest(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: suggestions})
}

// CategoryStats handles GET /api/products/stats/categories
func (h *ProductHandler) CategoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.AggregateByCategory(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// Analyze handles GET /api/products/analyze
func (h *ProductHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text, analyzer := q.Get("text"), q.Get("analyzer")

	tokens, err := h.service.Analyze(r.Context(), text, analyzer)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if analyzer == "" {
		analyzer = query.AnalyzerMorphological
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: analyzeResponse{
		Text:     text,
		Analyzer: analyzer,
		Tokens:   tokens,
	}})
}

// --- Query parameter readers ---

func termParam(name string) func(*http.Request) (domain.SearchParams, error) {
	return func(r *http.Request) (domain.SearchParams, error) {
		return domain.SearchParams{Term: r.URL.Query().Get(name)}, nil
	}
}

func categoryParams(r *http.Request) (domain.SearchParams, error) {
	return domain.SearchParams{Category: r.URL.Query().Get("category")}, nil
}

func brandParams(r *http.Request) (domain.SearchParams, error) {
	return domain.SearchParams{Brand: r.URL.Query().Get("brand")}, nil
}

func tagParams(r *http.Request) (domain.SearchParams, error) {
	return domain.SearchParams{Tag: r.URL.Query().Get("tag")}, nil
}

func priceParams(r *http.Request) (domain.SearchParams, error) {
	var p domain.SearchParams
	var err error
	if p.MinPrice, err = floatParam(r, "minPrice"); err != nil {
		return p, err
	}
	if p.MaxPrice, err = floatParam(r, "maxPrice"); err != nil {
		return p, err
	}
	return p, nil
}

func advancedParams(r *http.Request) (domain.SearchParams, error) {
	p, err := priceParams(r)
	if err != nil {
		return p, err
	}
	p.Term = r.URL.Query().Get("query")
	return p, nil
}

// floatParam reads an optional number, accepting both camelCase and
// snake_case parameter names.
func floatParam(r *http.Request, name string) (*float64, error) {
	q := r.URL.Query()
	raw := q.Get(name)
	if raw == "" {
		raw = q.Get(snakeCase(name))
	}
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.InvalidArgument("%s must be a valid number, got %q", name, raw)
	}
	return &v, nil
}

func snakeCase(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= 'A' && c <= 'Z' {
			b.WriteByte('_')
			c += 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}
