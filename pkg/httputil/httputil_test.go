package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
	"github.com/utafrali/productsearch/pkg/logger"
	"github.com/utafrali/productsearch/pkg/validator"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorResponse  `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func validationErr(t *testing.T) error {
	t.Helper()
	type product struct {
		Name  string  `json:"name" validate:"notblank"`
		Price float64 `json:"price" validate:"gte=0"`
	}
	err := validator.Validate(product{Name: " ", Price: -1})
	require.Error(t, err)
	return err
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: map[string]string{"id": "p-1"}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"p-1"}}`, rec.Body.String())
}

func TestResponse_OmitsEmptyMembers(t *testing.T) {
	b, err := json.Marshal(Response{Data: []int{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(b))

	b, err = json.Marshal(Response{Error: &ErrorResponse{Code: apperrors.CodeNotFound, Message: "gone"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"gone"}}`, string(b))
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantFields  map[string]string
	}{
		{
			name:        "app not found",
			err:         apperrors.NotFound("product", "p-1"),
			wantStatus:  http.StatusNotFound,
			wantCode:    apperrors.CodeNotFound,
			wantMessage: "product with id p-1 not found",
		},
		{
			name:        "wrapped not found sentinel",
			err:         fmt.Errorf("get p-1: %w", apperrors.ErrNotFound),
			wantStatus:  http.StatusNotFound,
			wantCode:    apperrors.CodeNotFound,
			wantMessage: "resource not found",
		},
		{
			name:        "invalid argument",
			err:         apperrors.InvalidArgument("size must be positive"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    apperrors.CodeInvalidArgument,
			wantMessage: "size must be positive",
		},
		{
			name:        "app validation",
			err:         apperrors.Validation("invalid product", map[string]string{"name": "is required"}),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    apperrors.CodeValidation,
			wantMessage: "invalid product",
			wantFields:  map[string]string{"name": "is required"},
		},
		{
			name:        "request validation",
			err:         validationErr(t),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    apperrors.CodeValidation,
			wantMessage: "request validation failed",
			wantFields: map[string]string{
				"name":  "must not be blank",
				"price": "must be greater than or equal to 0",
			},
		},
		{
			name:        "backend unavailable",
			err:         apperrors.BackendUnavailable(errors.New("dial tcp 10.0.0.7:9200: connect: connection refused")),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    apperrors.CodeBackendUnavailable,
			wantMessage: "search backend is unavailable",
		},
		{
			name:        "partial failure sentinel",
			err:         fmt.Errorf("bulk: %w", apperrors.ErrPartialFailure),
			wantStatus:  http.StatusMultiStatus,
			wantCode:    apperrors.CodePartialFailure,
			wantMessage: "some items could not be saved",
		},
		{
			name:        "unclassified",
			err:         errors.New("index closed"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    apperrors.CodeInternal,
			wantMessage: "an internal error occurred",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/products/p-1", nil)

			WriteError(rec, req, tt.err, logger.NewWithWriter("productsearch", "error", &bytes.Buffer{}))

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.Nil(t, env.Data)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Equal(t, tt.wantMessage, env.Error.Message)
			assert.Equal(t, tt.wantFields, env.Error.Fields)
			assert.Empty(t, env.Error.RequestID)
		})
	}
}

func TestWriteError_RequestID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-42")
	req := httptest.NewRequest(http.MethodDelete, "/api/products/p-9", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	WriteError(rec, req, apperrors.NotFound("product", "p-9"), nil)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "corr-42", env.Error.RequestID)
}

func TestWriteError_Logging(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantMsg   string
	}{
		{"server error", errors.New("index closed"), "ERROR", "internal error"},
		{"backend down", apperrors.BackendUnavailable(errors.New("timeout")), "WARN", "search backend unavailable"},
		{"client error", apperrors.InvalidArgument("bad"), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			req := httptest.NewRequest(http.MethodGet, "/api/products/search/keyword", nil)

			WriteError(httptest.NewRecorder(), req, tt.err, logger.NewWithWriter("productsearch", "info", &buf))

			if tt.wantMsg == "" {
				assert.Zero(t, buf.Len())
				return
			}
			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, tt.wantMsg, line["msg"])
			assert.Equal(t, "/api/products/search/keyword", line["path"])
		})
	}
}

func TestWriteError_PrefersContextLogger(t *testing.T) {
	var scoped, fallback bytes.Buffer
	ctx := logger.NewContext(context.Background(), logger.NewWithWriter("productsearch", "info", &scoped))
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

	WriteError(httptest.NewRecorder(), req, errors.New("boom"), logger.NewWithWriter("productsearch", "info", &fallback))

	assert.NotZero(t, scoped.Len())
	assert.Zero(t, fallback.Len())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	tests := []struct {
		name    string
		payload string
		limit   int64
		wantErr string
	}{
		{"valid", `{"name":"Desk lamp","price":39.9}`, 1 << 10, ""},
		{"malformed", `{"name":`, 1 << 10, "invalid request body"},
		{"unknown field", `{"name":"x","colour":"red"}`, 1 << 10, "unknown field"},
		{"too large", `{"name":"` + strings.Repeat("x", 64) + `"}`, 16, "exceeds 16 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(tt.payload))
			var dst body

			err := DecodeJSON(httptest.NewRecorder(), req, &dst, tt.limit)

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, body{Name: "Desk lamp", Price: 39.9}, dst)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
