package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

// RetryingProvider wraps a Provider with the failure handling the
// orchestrator relies on: transient failures retry with exponential
// backoff, oversize inputs are hard-truncated at the character boundary and
// resubmitted once, permanent failures propagate. It also enforces the
// contract that results preserve order and count.
type RetryingProvider struct {
	inner Provider
	retry ctxerr.RetryConfig
}

// Verify interface implementation at compile time
var _ Provider = (*RetryingProvider)(nil)

// NewRetryingProvider wraps inner with the default retry policy.
func NewRetryingProvider(inner Provider) *RetryingProvider {
	return &RetryingProvider{
		inner: inner,
		retry: ctxerr.DefaultRetryConfig(),
	}
}

// EmbedBatch generates embeddings for texts, preserving order.
func (p *RetryingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := p.embedWithRetry(ctx, texts)
	if err != nil {
		var ce *ctxerr.ContextError
		if errors.As(err, &ce) && ce.Code == ctxerr.ErrCodeEmbeddingOversize {
			truncated := p.truncate(texts)
			slog.Warn("oversize embedding input, truncating and resubmitting",
				slog.Int("texts", len(texts)),
				slog.String("provider", p.inner.ProviderName()))
			vectors, err = p.embedWithRetry(ctx, truncated)
			if err != nil {
				return nil, ctxerr.EmbeddingError("input still oversize after truncation", err)
			}
		} else {
			return nil, err
		}
	}

	if len(vectors) != len(texts) {
		return nil, ctxerr.EmbeddingError(
			fmt.Sprintf("provider %s returned %d vectors for %d texts", p.inner.ProviderName(), len(vectors), len(texts)), nil)
	}
	return vectors, nil
}

func (p *RetryingProvider) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	return ctxerr.RetryWithResult(ctx, p.retry, ctxerr.IsRetryable, func() ([][]float32, error) {
		return p.inner.EmbedBatch(ctx, texts)
	})
}

// truncate hard-caps each text at the provider's token limit, approximated
// at CharsPerToken characters per token, cutting at the preceding newline
// when one is close so truncation respects the splitter's line boundaries.
func (p *RetryingProvider) truncate(texts []string) []string {
	maxChars := p.inner.MaxInputTokens() * CharsPerToken
	if maxChars <= 0 {
		return texts
	}

	out := make([]string, len(texts))
	for i, t := range texts {
		if len(t) <= maxChars {
			out[i] = t
			continue
		}
		cut := maxChars
		for j := maxChars - 1; j > maxChars/2; j-- {
			if t[j] == '\n' {
				cut = j
				break
			}
		}
		out[i] = t[:cut]
	}
	return out
}

// Dimensions returns the embedding dimension.
func (p *RetryingProvider) Dimensions() int { return p.inner.Dimensions() }

// MaxInputTokens returns the per-text token limit.
func (p *RetryingProvider) MaxInputTokens() int { return p.inner.MaxInputTokens() }

// ProviderName returns the provider identifier.
func (p *RetryingProvider) ProviderName() string { return p.inner.ProviderName() }

// Close releases resources.
func (p *RetryingProvider) Close() error { return p.inner.Close() }
