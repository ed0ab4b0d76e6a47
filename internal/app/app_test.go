package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/productsearch/internal/config"
	"github.com/utafrali/productsearch/internal/engine/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{"SEARCH_ENGINE": config.EngineMemory})
	require.NoError(t, err)
	return cfg
}

func TestNewEngine_Memory(t *testing.T) {
	eng, err := NewEngine(context.Background(), memoryConfig(t), testLogger())

	require.NoError(t, err)
	assert.IsType(t, &memory.Engine{}, eng)
}

func TestNewEngine_UnreachableElasticsearch(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"ELASTICSEARCH_URL":             "http://127.0.0.1:1",
		"ELASTICSEARCH_CONNECT_TIMEOUT": "200ms",
	})
	require.NoError(t, err)

	_, err = NewEngine(context.Background(), cfg, testLogger())

	assert.Error(t, err)
}

func TestNewApp_ServesProductsOverMemoryEngine(t *testing.T) {
	a, err := NewApp(context.Background(), memoryConfig(t), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	h := a.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := `{"name":"MacBook Pro","description":"Apple laptop","category":"Electronics","price":3990000,"stock":15}`
	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/stats/categories", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"Electronics":1}}`, w.Body.String())
}
