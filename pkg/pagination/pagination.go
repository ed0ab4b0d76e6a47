package pagination

import (
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
)

const (
	// DefaultSize is the page length used when the request names none.
	DefaultSize = 10
	// MaxSize caps the page length a client may ask for.
	MaxSize = 100
	// MaxResultWindow bounds offset+size of any page.
	MaxResultWindow = 10000
)

// Params holds zero-based pagination parameters extracted from query strings.
type Params struct {
	Page   int `json:"page"`
	Size   int `json:"size"`
	Offset int `json:"-"`
}

// DefaultParams returns the first page with the default size.
func DefaultParams() Params {
	return Params{
		Page:   0,
		Size:   DefaultSize,
		Offset: 0,
	}
}

// New builds Params for a zero-based page and size, rejecting negative pages
// and sizes outside 1..MaxSize.
func New(page, size int) (Params, error) {
	if page < 0 {
		return Params{}, apperrors.InvalidArgument("page must be >= 0, got %d", page)
	}
	if size < 1 || size > MaxSize {
		return Params{}, apperrors.InvalidArgument("size must be between 1 and %d, got %d", MaxSize, size)
	}
	if err := checkWindow(page, size); err != nil {
		return Params{}, err
	}
	return Params{Page: page, Size: size, Offset: page * size}, nil
}

// checkWindow rejects pages ending past MaxResultWindow. It compares before
// multiplying so that huge pages cannot overflow the offset.
func checkWindow(page, size int) error {
	if page >= MaxResultWindow/size {
		return apperrors.InvalidArgument("page %d with size %d exceeds the result window of %d", page, size, MaxResultWindow)
	}
	return nil
}

// FromRequest extracts pagination parameters from the page and size query
// parameters. Sizes above MaxSize are capped. Non-numeric or negative values
// and pages past MaxResultWindow are rejected.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()

	if page := q.Get("page"); page != "" {
		v, err := strconv.Atoi(page)
		if err != nil || v < 0 {
			return Params{}, apperrors.InvalidArgument("page must be a non-negative integer, got %q", page)
		}
		p.Page = v
	}

	if size := q.Get("size"); size != "" {
		v, err := strconv.Atoi(size)
		if err != nil || v < 1 {
			return Params{}, apperrors.InvalidArgument("size must be a positive integer, got %q", size)
		}
		p.Size = min(v, MaxSize)
	}

	if err := checkWindow(p.Page, p.Size); err != nil {
		return Params{}, err
	}
	p.Offset = p.Page * p.Size
	return p, nil
}

// Result wraps a paginated response.
type Result[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
	HasNext       bool  `json:"has_next"`
	HasPrev       bool  `json:"has_prev"`
}

// NewResult creates a paginated result.
func NewResult[T any](content []T, totalElements int64, params Params) Result[T] {
	if content == nil {
		content = []T{}
	}

	var totalPages int
	if params.Size > 0 {
		totalPages = int(totalElements / int64(params.Size))
		if totalElements%int64(params.Size) > 0 {
			totalPages++
		}
	}

	return Result[T]{
		Content:       content,
		Page:          params.Page,
		Size:          params.Size,
		TotalElements: totalElements,
		TotalPages:    totalPages,
		HasNext:       params.Page+1 < totalPages,
		HasPrev:       params.Page > 0,
	}
}

// Empty returns a result with no content for the given page.
func Empty[T any](params Params) Result[T] {
	return NewResult[T](nil, 0, params)
}
