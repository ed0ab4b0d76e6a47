package pagination

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0, p.Page)
	assert.Equal(t, 10, p.Size)
	assert.Equal(t, 0, p.Offset)
}

func TestNew(t *testing.T) {
	p, err := New(2, 25)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Offset)

	_, err = New(-1, 10)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	_, err = New(0, 0)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	_, err = New(0, 101)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestNew_ResultWindow(t *testing.T) {
	tests := []struct {
		name    string
		page    int
		size    int
		wantErr bool
	}{
		{"last page in window", 99, 100, false},
		{"first page past window", 100, 100, true},
		{"uneven size last page", 1427, 7, false},
		{"uneven size past window", 1428, 7, true},
		{"offset would overflow", math.MaxInt / 10, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.page, tt.size)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.LessOrEqual(t, p.Offset+p.Size, MaxResultWindow)
		})
	}
}

func TestFromRequest_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	p, err := FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, 0, p.Page)
	assert.Equal(t, 10, p.Size)
	assert.Equal(t, 0, p.Offset)
}

func TestFromRequest_CustomValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/products?page=3&size=50", nil)
	p, err := FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.Size)
	assert.Equal(t, 150, p.Offset)
}

func TestFromRequest_SizeCapped(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/products?size=500", nil)
	p, err := FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, MaxSize, p.Size)
}

func TestFromRequest_Invalid(t *testing.T) {
	for _, query := range []string{"page=-1", "page=abc", "size=0", "size=-3", "size=ten", "page=1000", "page=922337203685477581&size=10", "page=101&size=500"} {
		t.Run(query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/products?"+query, nil)
			_, err := FromRequest(req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
		})
	}
}

func TestNewResult_Basic(t *testing.T) {
	content := []string{"a", "b", "c"}
	result := NewResult(content, 3, Params{Page: 0, Size: 10})

	assert.Equal(t, content, result.Content)
	assert.Equal(t, int64(3), result.TotalElements)
	assert.Equal(t, 0, result.Page)
	assert.Equal(t, 10, result.Size)
	assert.Equal(t, 1, result.TotalPages)
	assert.False(t, result.HasNext)
	assert.False(t, result.HasPrev)
}

func TestNewResult_MiddlePage(t *testing.T) {
	result := NewResult([]string{"c", "d"}, 10, Params{Page: 1, Size: 2, Offset: 2})

	assert.Equal(t, 5, result.TotalPages)
	assert.True(t, result.HasNext)
	assert.True(t, result.HasPrev)
}

func TestNewResult_LastPage(t *testing.T) {
	result := NewResult([]string{"k"}, 11, Params{Page: 2, Size: 5, Offset: 10})

	assert.Equal(t, 3, result.TotalPages)
	assert.False(t, result.HasNext)
	assert.True(t, result.HasPrev)
}

func TestEmpty(t *testing.T) {
	result := Empty[string](Params{Page: 0, Size: 20})

	assert.NotNil(t, result.Content)
	assert.Empty(t, result.Content)
	assert.Equal(t, int64(0), result.TotalElements)
	assert.Equal(t, 0, result.TotalPages)
	assert.False(t, result.HasNext)
	assert.False(t, result.HasPrev)
}
