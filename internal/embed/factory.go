package embed

import (
	"fmt"

	"github.com/tan-yong-sheng/code-context/internal/config"
	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

// New creates the configured embedding provider, wrapped with the standard
// retry and truncation behavior.
func New(cfg config.EmbeddingConfig) (Provider, error) {
	var inner Provider

	switch cfg.Provider {
	case "openai":
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		inner = e

	case "ollama":
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})

	case "static":
		inner = NewStaticEmbedder()

	default:
		return nil, ctxerr.New(ctxerr.ErrCodeUnknownProvider,
			fmt.Sprintf("unknown embedding provider: %q", cfg.Provider), nil)
	}

	return NewRetryingProvider(inner), nil
}
