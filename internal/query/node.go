package query

// Node is one clause of a structured query. Source returns the clause in the
// engine's JSON query DSL; user input only ever appears as a value inside it.
type Node interface {
	Source() map[string]any
}

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) Source() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// MatchNone matches no document.
type MatchNone struct{}

func (MatchNone) Source() map[string]any {
	return map[string]any{"match_none": map[string]any{}}
}

// Match is an analyzed full-text match on one field.
type Match struct {
	Field    string
	Query    string
	Analyzer string
	Boost    float64
}

func (m Match) Source() map[string]any {
	body := map[string]any{"query": m.Query}
	if m.Analyzer != "" {
		body["analyzer"] = m.Analyzer
	}
	if m.Boost != 0 {
		body["boost"] = m.Boost
	}
	return map[string]any{"match": map[string]any{m.Field: body}}
}

// MatchPhrasePrefix matches the terms in order, the last one as a prefix.
type MatchPhrasePrefix struct {
	Field string
	Query string
	Boost float64
}

func (m MatchPhrasePrefix) Source() map[string]any {
	body := map[string]any{"query": m.Query}
	if m.Boost != 0 {
		body["boost"] = m.Boost
	}
	return map[string]any{"match_phrase_prefix": map[string]any{m.Field: body}}
}

// MultiMatch runs one query over several fields. Fields may carry a "^boost"
// suffix.
type MultiMatch struct {
	Query     string
	Fields    []string
	Type      string
	Fuzziness string
}

func (m MultiMatch) Source() map[string]any {
	body := map[string]any{
		"query":  m.Query,
		"fields": m.Fields,
	}
	if m.Type != "" {
		body["type"] = m.Type
	}
	if m.Fuzziness != "" {
		body["fuzziness"] = m.Fuzziness
	}
	return map[string]any{"multi_match": body}
}

// Term is an exact, unanalyzed match on a keyword field.
type Term struct {
	Field string
	Value string
	Boost float64
}

func (t Term) Source() map[string]any {
	body := map[string]any{"value": t.Value}
	if t.Boost != 0 {
		body["boost"] = t.Boost
	}
	return map[string]any{"term": map[string]any{t.Field: body}}
}

// Wildcard matches a pattern where * is any run and ? any single character.
// Value must already be escaped; see Contains.
type Wildcard struct {
	Field           string
	Value           string
	CaseInsensitive bool
	Boost           float64
}

func (w Wildcard) Source() map[string]any {
	body := map[string]any{"value": w.Value}
	if w.CaseInsensitive {
		body["case_insensitive"] = true
	}
	if w.Boost != 0 {
		body["boost"] = w.Boost
	}
	return map[string]any{"wildcard": map[string]any{w.Field: body}}
}

// Prefix matches terms starting with Value.
type Prefix struct {
	Field string
	Value string
}

func (p Prefix) Source() map[string]any {
	return map[string]any{"prefix": map[string]any{p.Field: map[string]any{"value": p.Value}}}
}

// Range is an inclusive numeric range. A nil bound is open.
type Range struct {
	Field string
	GTE   *float64
	LTE   *float64
}

func (r Range) Source() map[string]any {
	body := map[string]any{}
	if r.GTE != nil {
		body["gte"] = *r.GTE
	}
	if r.LTE != nil {
		body["lte"] = *r.LTE
	}
	return map[string]any{"range": map[string]any{r.Field: body}}
}

// Bool combines clauses. With no Must or Filter clause at least one Should
// clause has to match.
type Bool struct {
	Must   []Node
	Should []Node
	Filter []Node
}

func (b Bool) Source() map[string]any {
	body := map[string]any{}
	if len(b.Must) > 0 {
		body["must"] = sources(b.Must)
	}
	if len(b.Should) > 0 {
		body["should"] = sources(b.Should)
	}
	if len(b.Filter) > 0 {
		body["filter"] = sources(b.Filter)
	}
	return map[string]any{"bool": body}
}

func sources(nodes []Node) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Source())
	}
	return out
}
