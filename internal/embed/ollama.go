package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

// Ollama API constants.
const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// ollamaMaxInputTokens approximates the context window of common
	// embedding models served by Ollama.
	ollamaMaxInputTokens = 2048
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: DefaultOllamaHost).
	Host string

	// Model is the embedding model (default: DefaultOllamaModel).
	Model string

	// Dimensions overrides auto-detection (0 = detect on first use).
	Dimensions int

	// Timeout is the per-request timeout (default: DefaultTimeout).
	Timeout time.Duration
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

// Verify interface implementation at compile time
var _ Provider = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OllamaEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		dims:   cfg.Dimensions,
	}
}

// ollamaEmbedRequest is the /api/embed request body.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the /api/embed response body.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error"`
}

// EmbedBatch generates embeddings for texts, preserving order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, ctxerr.TransientEmbeddingError("ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return nil, ctxerr.TransientEmbeddingError("failed to read ollama response", err)
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		if resp.StatusCode >= 500 {
			return nil, ctxerr.TransientEmbeddingError(fmt.Sprintf("ollama returned %d", resp.StatusCode), nil)
		}
		return nil, ctxerr.EmbeddingError("failed to parse ollama response", err)
	}

	if resp.StatusCode != http.StatusOK || parsed.Error != "" {
		msg := fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, parsed.Error)
		if resp.StatusCode >= 500 {
			return nil, ctxerr.TransientEmbeddingError(msg, nil)
		}
		// model-not-found and malformed requests are permanent
		return nil, ctxerr.EmbeddingError(msg, nil)
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, ctxerr.EmbeddingError(
			fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Embeddings)), nil)
	}

	e.mu.Lock()
	if e.dims == 0 && len(parsed.Embeddings[0]) > 0 {
		e.dims = len(parsed.Embeddings[0])
	}
	e.mu.Unlock()

	return parsed.Embeddings, nil
}

// DetectDimensions embeds a probe text to learn the model dimension when it
// is not configured.
func (e *OllamaEmbedder) DetectDimensions(ctx context.Context) (int, error) {
	e.mu.RLock()
	dims := e.dims
	e.mu.RUnlock()
	if dims > 0 {
		return dims, nil
	}

	vectors, err := e.EmbedBatch(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("failed to detect embedding dimensions: %w", err)
	}
	return len(vectors[0]), nil
}

// Dimensions returns the embedding dimension (0 until detected).
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// MaxInputTokens returns the per-text token limit.
func (e *OllamaEmbedder) MaxInputTokens() int {
	return ollamaMaxInputTokens
}

// ProviderName returns the provider identifier.
func (e *OllamaEmbedder) ProviderName() string {
	return "ollama/" + e.config.Model
}

// Close releases resources.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
