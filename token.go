package cratedoc

import "context"

// TokenCounter counts tokens in text for a specific model.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// BytesPerToken is the ratio used when no tokenizer is configured.
const BytesPerToken = 4

// ApproxTokenCounter estimates one token per BytesPerToken bytes.
type ApproxTokenCounter struct{}

// CountTokens implements TokenCounter.
func (ApproxTokenCounter) CountTokens(_ context.Context, text string) (int, error) {
	return (len(text) + BytesPerToken - 1) / BytesPerToken, nil
}
