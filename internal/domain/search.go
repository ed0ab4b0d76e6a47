package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/utafrali/productsearch/pkg/errors"
	"github.com/utafrali/productsearch/pkg/pagination"
)

// Strategy names one of the closed set of query strategies.
type Strategy string

const (
	StrategyKeyword               Strategy = "keyword"
	StrategyAdvanced              Strategy = "advanced"
	StrategyCategory              Strategy = "category"
	StrategyBrand                 Strategy = "brand"
	StrategyTag                   Strategy = "tag"
	StrategyPriceRange            Strategy = "price-range"
	StrategyFuzzy                 Strategy = "fuzzy"
	StrategyPartial               Strategy = "partial"
	StrategyMorphological         Strategy = "morphological"
	StrategyMorphologicalPartial  Strategy = "morphological-partial"
	StrategyMorphologicalAdvanced Strategy = "morphological-advanced"
	StrategyMixed                 Strategy = "mixed"
	StrategyPrefixSuggest         Strategy = "prefix-suggest"
)

// Strategies returns every supported strategy in a stable order.
func Strategies() []Strategy {
	return []Strategy{
		StrategyKeyword, StrategyAdvanced, StrategyCategory, StrategyBrand,
		StrategyTag, StrategyPriceRange, StrategyFuzzy, StrategyPartial,
		StrategyMorphological, StrategyMorphologicalPartial,
		StrategyMorphologicalAdvanced, StrategyMixed, StrategyPrefixSuggest,
	}
}

// ParseStrategy maps a strategy name to its Strategy value.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", apperrors.InvalidArgument("unknown search strategy %q", s)
}

// SearchParams carries the user input of a search. Which fields a strategy
// reads is decided by the query builder.
type SearchParams struct {
	Term     string   `json:"term,omitempty"`
	Category string   `json:"category,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Tag      string   `json:"tag,omitempty"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}

// SortDirection orders a sort field.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sortable document fields.
const (
	FieldID        = "id"
	FieldName      = "name"
	FieldPrice     = "price"
	FieldStock     = "stock"
	FieldCategory  = "category"
	FieldBrand     = "brand"
	FieldTags      = "tags"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"

	// FieldScore sorts by engine relevance.
	FieldScore = "_score"
)

var sortAliases = map[string]string{
	"name":       FieldName,
	"price":      FieldPrice,
	"stock":      FieldStock,
	"category":   FieldCategory,
	"brand":      FieldBrand,
	"created_at": FieldCreatedAt,
	"createdat":  FieldCreatedAt,
	"updated_at": FieldUpdatedAt,
	"updatedat":  FieldUpdatedAt,
}

// SortOrder is one sort key.
type SortOrder struct {
	Field     string
	Direction SortDirection
}

// MaxResultWindow bounds from+size of any paged request.
const MaxResultWindow = pagination.MaxResultWindow

// PageRequest is a zero-based page plus the sort applied to it.
type PageRequest struct {
	pagination.Params
	Sort SortOrder
}

// DefaultSort is applied when a listing names no sort field.
var DefaultSort = SortOrder{Field: FieldName, Direction: SortAsc}

// NewPageRequest validates paging and sort input. Empty sortBy or direction
// fall back to DefaultSort; field names accept snake_case and camelCase.
func NewPageRequest(params pagination.Params, sortBy, direction string) (PageRequest, error) {
	if params.Offset+params.Size > MaxResultWindow {
		return PageRequest{}, apperrors.InvalidArgument("page %d with size %d exceeds the result window of %d", params.Page, params.Size, MaxResultWindow)
	}

	sort := DefaultSort
	if s := strings.TrimSpace(sortBy); s != "" {
		field, ok := sortAliases[strings.ToLower(s)]
		if !ok {
			return PageRequest{}, apperrors.InvalidArgument("unsupported sort field %q", sortBy)
		}
		sort.Field = field
	}

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "", "asc":
		sort.Direction = SortAsc
	case "desc":
		sort.Direction = SortDesc
	default:
		return PageRequest{}, apperrors.InvalidArgument("sort direction must be asc or desc, got %q", direction)
	}

	return PageRequest{Params: params, Sort: sort}, nil
}

// Orders returns the sort keys with the id tie-break appended so that paging
// is stable across requests.
func (p PageRequest) Orders() []SortOrder {
	return []SortOrder{p.Sort, {Field: FieldID, Direction: SortAsc}}
}

// RelevancePage returns a page request ordered by relevance.
func RelevancePage(params pagination.Params) (PageRequest, error) {
	if params.Offset+params.Size > MaxResultWindow {
		return PageRequest{}, apperrors.InvalidArgument("page %d with size %d exceeds the result window of %d", params.Page, params.Size, MaxResultWindow)
	}
	return PageRequest{Params: params, Sort: SortOrder{Field: FieldScore, Direction: SortDesc}}, nil
}

func (s SortOrder) String() string {
	return fmt.Sprintf("%s %s", s.Field, s.Direction)
}
