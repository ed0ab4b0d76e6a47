package query

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/utafrali/productsearch/internal/domain"
	apperrors "github.com/utafrali/productsearch/pkg/errors"
)

// Analyzer names configured on the index.
const (
	AnalyzerMorphological       = "nori_standard"
	AnalyzerMorphologicalSearch = "nori_search"
	AnalyzerStandard            = "standard"
	AnalyzerEdgeNGram           = "edge_ngram"
)

// Index field names, including the sub-fields of the multi-fields.
const (
	FieldName                = "name"
	FieldNameStandard        = "name.standard"
	FieldNameKeyword         = "name.keyword"
	FieldNameNGram           = "name.ngram"
	FieldDescription         = "description"
	FieldDescriptionStandard = "description.standard"
	FieldCategory            = "category"
	FieldBrand               = "brand"
	FieldTags                = "tags"
	FieldPrice               = "price"
)

// SuggestSize is the maximum number of hits fetched for suggestions.
const SuggestSize = 10

// ErrEmptyTerm is returned when a strategy that needs a search term gets none.
var ErrEmptyTerm = fmt.Errorf("%w: search term must not be empty", apperrors.ErrInvalidArgument)

type builder func(domain.SearchParams) (Node, error)

var builders = map[domain.Strategy]builder{
	domain.StrategyKeyword:               keyword,
	domain.StrategyAdvanced:              advanced,
	domain.StrategyCategory:              exact(FieldCategory, func(p domain.SearchParams) string { return p.Category }),
	domain.StrategyBrand:                 exact(FieldBrand, func(p domain.SearchParams) string { return p.Brand }),
	domain.StrategyTag:                   exact(FieldTags, func(p domain.SearchParams) string { return p.Tag }),
	domain.StrategyPriceRange:            priceRange,
	domain.StrategyFuzzy:                 fuzzy,
	domain.StrategyPartial:               partial,
	domain.StrategyMorphological:         morphological,
	domain.StrategyMorphologicalPartial:  morphologicalPartial,
	domain.StrategyMorphologicalAdvanced: morphologicalAdvanced,
	domain.StrategyMixed:                 mixed,
	domain.StrategyPrefixSuggest:         prefixSuggest,
}

// Build returns the query for strategy. Empty terms fail with ErrEmptyTerm,
// bad prices with an InvalidArgument error; an inverted price range yields
// MatchNone.
func Build(strategy domain.Strategy, params domain.SearchParams) (Node, error) {
	b, ok := builders[strategy]
	if !ok {
		return nil, apperrors.InvalidArgument("unknown search strategy %q", strategy)
	}
	return b(params)
}

// IsEmptyTerm reports whether err came from a missing search term.
func IsEmptyTerm(err error) bool {
	return errors.Is(err, ErrEmptyTerm)
}

func term(p domain.SearchParams) (string, error) {
	t := strings.TrimSpace(p.Term)
	if t == "" {
		return "", ErrEmptyTerm
	}
	return t, nil
}

func keyword(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	pattern := Contains(t)
	return Bool{Should: []Node{
		Match{Field: FieldNameStandard, Query: t},
		Match{Field: FieldDescriptionStandard, Query: t},
		Term{Field: FieldCategory, Value: t},
		Wildcard{Field: FieldNameKeyword, Value: pattern, CaseInsensitive: true},
		Wildcard{Field: FieldName, Value: pattern, CaseInsensitive: true},
		Wildcard{Field: FieldDescription, Value: pattern, CaseInsensitive: true},
	}}, nil
}

func advanced(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	price, err := priceFilter(p)
	if err != nil {
		return nil, err
	}
	return Bool{
		Must: []Node{MultiMatch{
			Query:     t,
			Fields:    []string{FieldName + "^3", FieldDescription + "^2", FieldCategory, FieldBrand},
			Type:      "best_fields",
			Fuzziness: "AUTO",
		}},
		Filter: []Node{price},
	}, nil
}

func exact(field string, value func(domain.SearchParams) string) builder {
	return func(p domain.SearchParams) (Node, error) {
		v := strings.TrimSpace(value(p))
		if v == "" {
			return nil, apperrors.InvalidArgument("%s must not be empty", field)
		}
		return Bool{Filter: []Node{Term{Field: field, Value: v}}}, nil
	}
}

func priceRange(p domain.SearchParams) (Node, error) {
	price, err := priceFilter(p)
	if err != nil {
		return nil, err
	}
	return Bool{Filter: []Node{price}}, nil
}

// priceFilter builds the inclusive price range. A missing minimum means 0,
// a missing maximum leaves the range open above.
func priceFilter(p domain.SearchParams) (Node, error) {
	lo := 0.0
	if p.MinPrice != nil {
		lo = *p.MinPrice
	}
	if err := checkPrice("min_price", lo); err != nil {
		return nil, err
	}

	r := Range{Field: FieldPrice, GTE: &lo}
	if p.MaxPrice != nil {
		hi := *p.MaxPrice
		if err := checkPrice("max_price", hi); err != nil {
			return nil, err
		}
		if lo > hi {
			return MatchNone{}, nil
		}
		r.LTE = &hi
	}
	return r, nil
}

func checkPrice(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperrors.InvalidArgument("%s must be a finite number", name)
	}
	if v < 0 {
		return apperrors.InvalidArgument("%s must not be negative", name)
	}
	return nil
}

func fuzzy(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	return MultiMatch{
		Query:     t,
		Fields:    []string{FieldName, FieldDescription, FieldCategory},
		Fuzziness: "AUTO",
	}, nil
}

func partial(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	pattern := Contains(t)
	return Bool{Should: []Node{
		Wildcard{Field: FieldName, Value: pattern, CaseInsensitive: true},
		Wildcard{Field: FieldDescription, Value: pattern, CaseInsensitive: true},
		MatchPhrasePrefix{Field: FieldName, Query: t},
		MatchPhrasePrefix{Field: FieldDescription, Query: t},
	}}, nil
}

func morphological(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	return Bool{Should: []Node{
		Match{Field: FieldName, Query: t, Analyzer: AnalyzerMorphological},
		Match{Field: FieldDescription, Query: t, Analyzer: AnalyzerMorphological},
	}}, nil
}

func morphologicalPartial(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	return Bool{Should: []Node{
		Match{Field: FieldNameNGram, Query: t},
		Match{Field: FieldName, Query: t, Analyzer: AnalyzerMorphological},
	}}, nil
}

func morphologicalAdvanced(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	return Bool{Should: []Node{
		Match{Field: FieldName, Query: t, Analyzer: AnalyzerMorphological, Boost: 2},
		Match{Field: FieldDescription, Query: t, Analyzer: AnalyzerMorphological, Boost: 1.5},
		MatchPhrasePrefix{Field: FieldName, Query: t, Boost: 1},
	}}, nil
}

// mixed ranks exact name matches above morphological matches above
// prefix matches.
func mixed(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	return Bool{Should: []Node{
		Match{Field: FieldNameKeyword, Query: t, Boost: 3},
		Match{Field: FieldName, Query: t, Analyzer: AnalyzerMorphological, Boost: 2},
		Match{Field: FieldNameNGram, Query: t, Boost: 1},
	}}, nil
}

func prefixSuggest(p domain.SearchParams) (Node, error) {
	t, err := term(p)
	if err != nil {
		return nil, err
	}
	return Bool{Should: []Node{
		Prefix{Field: FieldName, Value: strings.ToLower(t)},
		Match{Field: FieldNameNGram, Query: t},
	}}, nil
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// EscapeWildcard escapes the wildcard metacharacters in s.
func EscapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

// Contains returns a wildcard pattern matching any value containing s.
func Contains(s string) string {
	return "*" + EscapeWildcard(s) + "*"
}
