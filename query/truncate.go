package query

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/fwojciec/cratedoc"
)

// cut returns the longest rune-aligned prefix of text that fits budget
// tokens and whether anything was dropped. The prefix holds at least one
// rune so windowed reads always advance. A non-positive budget keeps
// everything.
func (s *Service) cut(ctx context.Context, text string, budget int) (string, bool, error) {
	if budget <= 0 || text == "" {
		return text, false, nil
	}
	n, err := s.tokens.CountTokens(ctx, text)
	if err != nil {
		return "", false, err
	}
	if n <= budget {
		return text, false, nil
	}

	bounds := runeBounds(text)
	// bounds[lo] fits, bounds[hi] does not.
	lo, hi := 0, len(bounds)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		n, err := s.tokens.CountTokens(ctx, text[:bounds[mid]])
		if err != nil {
			return "", false, err
		}
		if n <= budget {
			lo = mid
		} else {
			hi = mid
		}
	}
	return text[:bounds[max(lo, 1)]], true, nil
}

// runeBounds returns the byte offset of every rune start plus len(text).
func runeBounds(text string) []int {
	bounds := make([]int, 0, len(text)+1)
	for i := range text {
		bounds = append(bounds, i)
	}
	return append(bounds, len(text))
}

// cutItems trims the documentation of each item to the doc budget.
func (s *Service) cutItems(ctx context.Context, items []*cratedoc.Item) (bool, error) {
	var truncated bool
	for _, item := range items {
		docs, cut, err := s.cut(ctx, item.Docs, s.docBudget)
		if err != nil {
			return false, err
		}
		if cut {
			item.Docs = docs
			truncated = true
		}
	}
	return truncated, nil
}

func itemsHint(budget int) string {
	return fmt.Sprintf("documentation was cut to %d tokens per item; use get_item_docs for the full text", budget)
}

func windowHint(what string, next int) string {
	return fmt.Sprintf("%s continues; request again with offset %d", what, next)
}

// checkOffset reports whether offset addresses a rune boundary of text.
func checkOffset(text string, offset int) error {
	if offset < 0 || offset > len(text) {
		return cratedoc.Errorf(cratedoc.EINVALID, "offset %d out of range [0, %d]", offset, len(text))
	}
	if offset < len(text) && !utf8.RuneStart(text[offset]) {
		return cratedoc.Errorf(cratedoc.EINVALID, "offset %d is not at a character boundary", offset)
	}
	return nil
}
