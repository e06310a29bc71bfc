package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

func newOllamaTestServer(t *testing.T, handler http.HandlerFunc) *OllamaEmbedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e := NewOllamaEmbedder(OllamaConfig{Host: server.URL, Model: "nomic-embed-text"})
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	e := newOllamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Len(t, req.Input, 2)

		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{1, 0, 0}, {0, 1, 0}},
		})
	})

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
}

func TestOllamaEmbedder_DetectsDimensionsFromFirstBatch(t *testing.T) {
	e := newOllamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{0, 0, 0, 0, 0}},
		})
	})

	assert.Equal(t, 0, e.Dimensions())

	dims, err := e.DetectDimensions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, dims)
	assert.Equal(t, 5, e.Dimensions())
}

func TestOllamaEmbedder_ModelNotFoundIsPermanent(t *testing.T) {
	e := newOllamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: `model "missing" not found`})
	})

	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, ctxerr.ErrCodeEmbeddingPermanent, ctxerr.GetCode(err))
}

func TestOllamaEmbedder_ServerErrorIsTransient(t *testing.T) {
	e := newOllamaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("overloaded"))
	})

	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, ctxerr.IsRetryable(err))
}

func TestOllamaEmbedder_ConnectionRefusedIsTransient(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://127.0.0.1:1"})
	defer func() { _ = e.Close() }()

	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, ctxerr.IsRetryable(err))
}

func TestOllamaEmbedder_ProviderName(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Model: "custom-model"})
	assert.Equal(t, "ollama/custom-model", e.ProviderName())
}
