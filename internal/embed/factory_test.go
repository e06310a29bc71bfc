package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tan-yong-sheng/code-context/internal/config"
	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

func TestNew_StaticProvider(t *testing.T) {
	p, err := New(config.EmbeddingConfig{Provider: "static"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, "static", p.ProviderName())
	assert.Equal(t, StaticDimensions, p.Dimensions())
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: "openai"})
	require.Error(t, err)
	assert.Equal(t, ctxerr.ErrCodeMissingCredentials, ctxerr.GetCode(err))
}

func TestNew_OpenAIProvider(t *testing.T) {
	p, err := New(config.EmbeddingConfig{
		Provider: "openai",
		APIKey:   "key",
		Model:    "text-embedding-3-large",
	})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, "openai/text-embedding-3-large", p.ProviderName())
	assert.Equal(t, 3072, p.Dimensions())
}

func TestNew_OllamaProvider(t *testing.T) {
	p, err := New(config.EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, "ollama/nomic-embed-text", p.ProviderName())
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: "telepathy"})
	require.Error(t, err)
	assert.Equal(t, ctxerr.ErrCodeUnknownProvider, ctxerr.GetCode(err))
}
