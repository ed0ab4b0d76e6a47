package memory

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/utafrali/productsearch/internal/engine"
)

// maxGram mirrors the edge_ngram tokenizer of the index settings.
const maxGram = 20

// tokenize splits text on anything that is not a letter or digit and
// lowercases the tokens. Offsets are byte offsets into text.
func tokenize(text string) []engine.Token {
	tokens := make([]engine.Token, 0)
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tokens = append(tokens, engine.Token{
			Token:       strings.ToLower(text[start:end]),
			StartOffset: start,
			EndOffset:   end,
			Type:        tokenType(text[start:end]),
			Position:    len(tokens),
		})
		start = -1
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

func tokenType(s string) string {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return "<HANGUL>"
		}
		if !unicode.IsDigit(r) {
			return "<ALPHANUM>"
		}
	}
	return "<NUM>"
}

func terms(text string) []string {
	toks := tokenize(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Token
	}
	return out
}

// edgeNGrams expands every token into its leading prefixes, 1 to maxGram runes.
func edgeNGrams(tokens []engine.Token) []engine.Token {
	out := make([]engine.Token, 0, len(tokens))
	for _, t := range tokens {
		n := 0
		for i := range t.Token {
			if n > 0 {
				out = append(out, gram(t, i))
			}
			n++
			if n > maxGram {
				break
			}
		}
		if n <= maxGram {
			out = append(out, gram(t, len(t.Token)))
		}
	}
	for i := range out {
		out[i].Position = i
	}
	return out
}

func gram(t engine.Token, end int) engine.Token {
	return engine.Token{
		Token:       t.Token[:end],
		StartOffset: t.StartOffset,
		EndOffset:   t.StartOffset + end,
		Type:        "word",
	}
}

// hasGram reports whether q is an edge n-gram of token.
func hasGram(token, q string) bool {
	return q != "" && utf8.RuneCountInString(q) <= maxGram && strings.HasPrefix(token, q)
}

// autoFuzziness returns the edit distance AUTO allows for a term of n runes.
func autoFuzziness(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func fuzzyEqual(a, b string, fuzzy bool) bool {
	if a == b {
		return true
	}
	if !fuzzy {
		return false
	}
	return levenshtein.Distance(a, b, nil) <= autoFuzziness(b)
}

// wildcardMatch matches s against pattern, where * is any run of characters,
// ? is exactly one, and a backslash escapes the next character.
func wildcardMatch(pattern, s string) bool {
	p := []rune(pattern)
	r := []rune(s)

	var pi, si int
	star, mark := -1, 0
	for si < len(r) {
		if pi < len(p) {
			switch c := p[pi]; {
			case c == '*':
				star, mark = pi, si
				pi++
				continue
			case c == '?':
				pi++
				si++
				continue
			case c == '\\' && pi+1 < len(p):
				if p[pi+1] == r[si] {
					pi += 2
					si++
					continue
				}
			case c == r[si]:
				pi++
				si++
				continue
			}
		}
		if star < 0 {
			return false
		}
		mark++
		si = mark
		pi = star + 1
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
