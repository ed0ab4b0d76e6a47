package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/service"
	"github.com/utafrali/productsearch/pkg/health"
	"github.com/utafrali/productsearch/pkg/middleware"
)

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	ServiceName    string
	RequestTimeout time.Duration
	CORS           middleware.CORSConfig
	// PprofCIDRs enables /debug/pprof/* for the listed networks when non-empty.
	PprofCIDRs []string
}

// DefaultRouterConfig returns the router settings used when none are given.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ServiceName:    "productsearch",
		RequestTimeout: 30 * time.Second,
		CORS:           middleware.DefaultCORSConfig(),
	}
}

// NewRouter creates a chi router with all product search routes registered.
func NewRouter(
	productService *service.ProductService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "productsearch"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	h := NewProductHandler(productService, logger)
	r.Route("/api/products", func(r chi.Router) {
		RegisterProductRoutes(r, h)
	})

	return r
}

// RegisterProductRoutes mounts the product endpoints on r.
func RegisterProductRoutes(r chi.Router, h *ProductHandler) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)

	r.Group(func(r chi.Router) {
		r.Use(chimw.AllowContentType("application/json"))
		r.Post("/", h.Create)
		r.Post("/bulk", h.BulkCreate)
	})

	r.Route("/search", func(r chi.Router) {
		r.Get("/", h.SearchPage(domain.StrategyKeyword, termParam("query")))
		r.Get("/advanced", h.SearchPage(domain.StrategyAdvanced, advancedParams))
		r.Get("/category", h.SearchPage(domain.StrategyCategory, categoryParams))
		r.Get("/brand", h.SearchPage(domain.StrategyBrand, brandParams))
		r.Get("/tag", h.SearchPage(domain.StrategyTag, tagParams))
		r.Get("/price", h.SearchPage(domain.StrategyPriceRange, priceParams))
		r.Get("/fuzzy", h.SearchList(domain.StrategyFuzzy, termParam("term")))
		r.Get("/partial", h.SearchList(domain.StrategyPartial, termParam("term")))
		r.Get("/nori", h.SearchPage(domain.StrategyMorphological, termParam("query")))
		r.Get("/nori-partial", h.SearchPage(domain.StrategyMorphologicalPartial, termParam("query")))
		r.Get("/nori-mixed", h.SearchPage(domain.StrategyMixed, termParam("query")))
		r.Get("/nori-advanced", h.SearchList(domain.StrategyMorphologicalAdvanced, termParam("query")))
	})

	r.Get("/suggest", h.Suggest)
	r.Get("/suggest/nori", h.Suggest)
	r.Get("/stats/categories", h.CategoryStats)
	r.Get("/analyze", h.Analyze)
}
