package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsHandler(cfg CORSConfig) http.Handler {
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_AllowOrigin(t *testing.T) {
	storefront := CORSConfig{
		AllowedOrigins: []string{"https://shop.example.com", "https://admin.example.com/"},
		Environment:    "production",
	}

	tests := []struct {
		name     string
		cfg      CORSConfig
		origin   string
		want     string
		wantVary bool
	}{
		{"development any origin", CORSConfig{Environment: "development"}, "https://other.test", "*", false},
		{"wildcard without origin header", DefaultCORSConfig(), "", "*", false},
		{"wildcard in list", CORSConfig{AllowedOrigins: []string{"*"}, Environment: "production"}, "https://a.test", "*", false},
		{"listed origin", storefront, "https://shop.example.com", "https://shop.example.com", true},
		{"listed with trailing slash", storefront, "https://admin.example.com", "https://admin.example.com", true},
		{"unlisted origin", storefront, "https://evil.test", "", false},
		{"no origin header", storefront, "", "", false},
		{
			"credentials echo origin",
			CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true, Environment: "production"},
			"https://a.test", "https://a.test", true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()

			corsHandler(tt.cfg).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantVary, rr.Header().Get("Vary") == "Origin")
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/products/bulk", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()

	corsHandler(CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Accept, Content-Type, X-Correlation-ID, X-Client-ID", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PreflightFromUnlistedOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rr := httptest.NewRecorder()

	corsHandler(CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_PlainOptionsReachesHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	rr := httptest.NewRecorder()

	corsHandler(DefaultCORSConfig()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS_CustomPolicy(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://a.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()

	corsHandler(CORSConfig{
		AllowedOrigins:   []string{"https://a.test"},
		AllowedMethods:   []string{http.MethodGet},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{CorrelationIDHeader, "X-Total-Count"},
		MaxAge:           60,
		AllowCredentials: true,
	}).ServeHTTP(rr, req)

	h := rr.Header()
	assert.Equal(t, "GET", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "X-Correlation-ID, X-Total-Count", h.Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "60", h.Get("Access-Control-Max-Age"))
	assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))
}
