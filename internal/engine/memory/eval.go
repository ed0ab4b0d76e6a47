package memory

import (
	"strconv"
	"strings"

	"github.com/utafrali/productsearch/internal/domain"
	"github.com/utafrali/productsearch/internal/query"
)

type fieldKind int

const (
	kindUnknown fieldKind = iota
	kindText
	kindNGram
	kindKeyword
	kindNumber
)

func kindOf(field string) fieldKind {
	switch field {
	case query.FieldName, query.FieldNameStandard, query.FieldDescription, query.FieldDescriptionStandard:
		return kindText
	case query.FieldNameNGram:
		return kindNGram
	case query.FieldNameKeyword, query.FieldCategory, query.FieldBrand, query.FieldTags, domain.FieldID:
		return kindKeyword
	case query.FieldPrice, domain.FieldStock:
		return kindNumber
	default:
		return kindUnknown
	}
}

func fieldValues(p domain.Product, field string) []string {
	switch field {
	case query.FieldName, query.FieldNameStandard, query.FieldNameKeyword, query.FieldNameNGram:
		return []string{p.Name}
	case query.FieldDescription, query.FieldDescriptionStandard:
		return []string{p.Description}
	case query.FieldCategory:
		return []string{p.Category}
	case query.FieldBrand:
		if p.Brand == "" {
			return nil
		}
		return []string{p.Brand}
	case query.FieldTags:
		return p.Tags
	case domain.FieldID:
		return []string{p.ID}
	default:
		return nil
	}
}

func numericValue(p domain.Product, field string) (float64, bool) {
	switch field {
	case query.FieldPrice:
		return p.Price, true
	case domain.FieldStock:
		return float64(p.Stock), true
	default:
		return 0, false
	}
}

func boostOr1(b float64) float64 {
	if b == 0 {
		return 1
	}
	return b
}

// evaluate reports whether p matches n and the score it contributes.
func evaluate(n query.Node, p domain.Product) (float64, bool) {
	switch q := n.(type) {
	case query.MatchAll:
		return 1, true
	case query.MatchNone:
		return 0, false
	case query.Match:
		return matchScore(p, q.Field, q.Query, boostOr1(q.Boost), false)
	case query.MultiMatch:
		return multiMatch(p, q)
	case query.MatchPhrasePrefix:
		return phrasePrefix(p, q)
	case query.Term:
		for _, v := range fieldTerms(p, q.Field) {
			if v == q.Value {
				return boostOr1(q.Boost), true
			}
		}
		return 0, false
	case query.Wildcard:
		pattern := q.Value
		if q.CaseInsensitive {
			pattern = strings.ToLower(pattern)
		}
		for _, v := range fieldTerms(p, q.Field) {
			if q.CaseInsensitive {
				v = strings.ToLower(v)
			}
			if wildcardMatch(pattern, v) {
				return boostOr1(q.Boost), true
			}
		}
		return 0, false
	case query.Prefix:
		for _, v := range fieldTerms(p, q.Field) {
			if strings.HasPrefix(v, q.Value) {
				return 1, true
			}
		}
		return 0, false
	case query.Range:
		v, ok := numericValue(p, q.Field)
		if !ok {
			return 0, false
		}
		if q.GTE != nil && v < *q.GTE {
			return 0, false
		}
		if q.LTE != nil && v > *q.LTE {
			return 0, false
		}
		return 1, true
	case query.Bool:
		return boolScore(p, q)
	default:
		return 0, false
	}
}

// fieldTerms returns the indexed terms of a field: tokens for text fields,
// whole values for keyword fields.
func fieldTerms(p domain.Product, field string) []string {
	values := fieldValues(p, field)
	if kindOf(field) == kindKeyword {
		return values
	}
	out := make([]string, 0)
	for _, v := range values {
		out = append(out, terms(v)...)
	}
	return out
}

// matchScore scores an analyzed match: the fraction of query terms found in
// the field, times boost. Keyword fields compare the whole value.
func matchScore(p domain.Product, field, text string, boost float64, fuzzy bool) (float64, bool) {
	switch kindOf(field) {
	case kindKeyword:
		for _, v := range fieldValues(p, field) {
			if fuzzyEqual(v, text, fuzzy) {
				return boost, true
			}
		}
		return 0, false
	case kindText, kindNGram:
	default:
		return 0, false
	}

	qterms := terms(text)
	if len(qterms) == 0 {
		return 0, false
	}
	docTerms := fieldTerms(p, field)
	ngram := kindOf(field) == kindNGram

	found := 0
	for _, qt := range qterms {
		for _, dt := range docTerms {
			if (ngram && hasGram(dt, qt)) || (!ngram && fuzzyEqual(dt, qt, fuzzy)) {
				found++
				break
			}
		}
	}
	if found == 0 {
		return 0, false
	}
	return boost * float64(found) / float64(len(qterms)), true
}

// multiMatch scores best_fields style: the best single field wins.
func multiMatch(p domain.Product, q query.MultiMatch) (float64, bool) {
	fuzzy := strings.EqualFold(q.Fuzziness, "AUTO")
	best, matched := 0.0, false
	for _, f := range q.Fields {
		field, boost := splitBoost(f)
		if s, ok := matchScore(p, field, q.Query, boost, fuzzy); ok {
			matched = true
			if s > best {
				best = s
			}
		}
	}
	return best, matched
}

func splitBoost(field string) (string, float64) {
	name, b, ok := strings.Cut(field, "^")
	if !ok {
		return field, 1
	}
	boost, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return name, 1
	}
	return name, boost
}

// phrasePrefix matches the query terms in order, the last as a prefix.
func phrasePrefix(p domain.Product, q query.MatchPhrasePrefix) (float64, bool) {
	qterms := terms(q.Query)
	if len(qterms) == 0 {
		return 0, false
	}
	docTerms := fieldTerms(p, q.Field)
	if kindOf(q.Field) == kindKeyword {
		for _, v := range docTerms {
			if strings.HasPrefix(v, q.Query) {
				return boostOr1(q.Boost), true
			}
		}
		return 0, false
	}

	last := len(qterms) - 1
	for start := 0; start+last < len(docTerms); start++ {
		ok := true
		for i, qt := range qterms {
			dt := docTerms[start+i]
			if i == last {
				ok = ok && strings.HasPrefix(dt, qt)
			} else {
				ok = ok && dt == qt
			}
		}
		if ok {
			return boostOr1(q.Boost), true
		}
	}
	return 0, false
}

func boolScore(p domain.Product, q query.Bool) (float64, bool) {
	score := 0.0
	for _, n := range q.Filter {
		if _, ok := evaluate(n, p); !ok {
			return 0, false
		}
	}
	for _, n := range q.Must {
		s, ok := evaluate(n, p)
		if !ok {
			return 0, false
		}
		score += s
	}

	anyShould := false
	for _, n := range q.Should {
		if s, ok := evaluate(n, p); ok {
			anyShould = true
			score += s
		}
	}
	if len(q.Should) > 0 && len(q.Must) == 0 && len(q.Filter) == 0 && !anyShould {
		return 0, false
	}
	return score, true
}
