// Package gemini counts tokens with the local Gemini tokenizer so response
// budgets match what a Gemini-backed agent will see.
package gemini

import (
	"context"

	"github.com/fwojciec/cratedoc"
	"google.golang.org/genai"
	"google.golang.org/genai/tokenizer"
)

// DefaultModel is the tokenizer model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

var _ cratedoc.TokenCounter = (*TokenCounter)(nil)

// TokenCounter counts tokens using the Gemini tokenizer.
type TokenCounter struct {
	tok *tokenizer.LocalTokenizer
}

// NewTokenCounter creates a TokenCounter for model. An empty model selects
// DefaultModel.
func NewTokenCounter(model string) (*TokenCounter, error) {
	if model == "" {
		model = DefaultModel
	}
	tok, err := tokenizer.NewLocalTokenizer(model)
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EINVALID, err, "unsupported tokenizer model %q", model)
	}
	return &TokenCounter{tok: tok}, nil
}

// CountTokens implements cratedoc.TokenCounter.
func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	result, err := tc.tok.CountTokens([]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return 0, cratedoc.WrapError(cratedoc.EINTERNAL, err, "failed to count tokens")
	}
	return int(result.TotalTokens), nil
}
