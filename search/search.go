// Package search provides tokenization, fuzzy term matching and result
// ranking for item indices.
package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/fwojciec/cratedoc"
)

// Field names an indexed part of an item.
type Field string

// Indexed fields.
const (
	FieldName Field = "name"
	FieldPath Field = "path"
	FieldKind Field = "kind"
	FieldDocs Field = "docs"
)

// Weight returns the contribution of a match in field f.
func (f Field) Weight() float64 {
	switch f {
	case FieldName:
		return 3
	case FieldPath:
		return 2
	default:
		return 1
	}
}

// Term is one token of one field of an item.
type Term struct {
	Token string
	Field Field
}

// Terms returns the distinct tokens of each indexed field of item.
func Terms(item *cratedoc.Item) []Term {
	var terms []Term
	add := func(f Field, s string) {
		for _, tok := range Tokenize(s) {
			terms = append(terms, Term{Token: tok, Field: f})
		}
	}
	add(FieldName, item.Name)
	add(FieldPath, item.Path)
	add(FieldKind, item.Kind)
	add(FieldDocs, item.Docs)
	return terms
}

// Tokenize splits s on non-alphanumerics and camelCase boundaries and
// lowercases the parts. A word that splits also yields its lowercased
// whole. Tokens are distinct and in order of first appearance.
func Tokenize(s string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(tok string) {
		if tok == "" {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		parts := splitCamel(w)
		for _, p := range parts {
			add(strings.ToLower(p))
		}
		if len(parts) > 1 {
			add(strings.ToLower(w))
		}
	}
	return tokens
}

// splitCamel splits "HTTPServerV2" into "HTTP", "Server", "V2".
func splitCamel(w string) []string {
	runes := []rune(w)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		if !unicode.IsUpper(cur) {
			continue
		}
		lowerBefore := unicode.IsLower(prev) || unicode.IsDigit(prev)
		acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if lowerBefore || acronymEnd {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}

// Similarity scores how well term matches the query token q, in (0, 1].
// Identical tokens score 1, prefixes score by coverage, and tokens within
// maxDist edits score below any prefix of the same length. Returns 0 for
// no match.
func Similarity(q, term string, maxDist int) float64 {
	if q == term {
		return 1
	}
	ql, tl := utf8.RuneCountInString(q), utf8.RuneCountInString(term)
	if ql >= 2 && strings.HasPrefix(term, q) {
		return 0.5 + 0.5*float64(ql)/float64(tl)
	}
	if maxDist <= 0 || abs(ql-tl) > maxDist {
		return 0
	}
	d := levenshtein.ComputeDistance(q, term)
	if d > maxDist || d >= ql {
		return 0
	}
	return 0.4 * (1 - float64(d)/float64(max(ql, tl)))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Match is a vocabulary term matched by a query token.
type Match struct {
	Query      string
	Term       string
	Similarity float64
}

// MatchTerms matches every token of pattern against vocab.
func MatchTerms(pattern string, vocab []string, maxDist int) []Match {
	var matches []Match
	for _, q := range Tokenize(pattern) {
		for _, term := range vocab {
			if s := Similarity(q, term, maxDist); s > 0 {
				matches = append(matches, Match{Query: q, Term: term, Similarity: s})
			}
		}
	}
	return matches
}

// Accumulator sums, per item, the best score of each query token.
type Accumulator struct {
	best map[string]map[string]float64
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{best: make(map[string]map[string]float64)}
}

// Add records score for item under query token q if it beats the
// previous best.
func (a *Accumulator) Add(item, q string, score float64) {
	perToken, ok := a.best[item]
	if !ok {
		perToken = make(map[string]float64)
		a.best[item] = perToken
	}
	if score > perToken[q] {
		perToken[q] = score
	}
}

// Scores returns the summed score of every item.
func (a *Accumulator) Scores() map[string]float64 {
	scores := make(map[string]float64, len(a.best))
	for item, perToken := range a.best {
		// Sum in a fixed order so equal inputs give equal floats.
		tokens := make([]string, 0, len(perToken))
		for q := range perToken {
			tokens = append(tokens, q)
		}
		sort.Strings(tokens)
		var total float64
		for _, q := range tokens {
			total += perToken[q]
		}
		scores[item] = total
	}
	return scores
}

// ExactScore scores an exact-mode match of pattern against name: exact
// beats prefix beats substring, and shorter names win within a class.
// Returns false when pattern is not a case-insensitive substring.
func ExactScore(pattern, name string) (float64, bool) {
	p, n := strings.ToLower(pattern), strings.ToLower(name)
	var class float64
	switch {
	case n == p:
		class = 3
	case strings.HasPrefix(n, p):
		class = 2
	case strings.Contains(n, p):
		class = 1
	default:
		return 0, false
	}
	return class + 1/float64(2+utf8.RuneCountInString(name)), true
}

// SortHits orders hits by score, then name, then id.
func SortHits(hits []*cratedoc.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Item.Name != b.Item.Name {
			return a.Item.Name < b.Item.Name
		}
		return a.Item.ID < b.Item.ID
	})
}
