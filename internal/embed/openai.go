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

// OpenAI API constants.
const (
	// DefaultOpenAIBaseURL is the default API endpoint. Compatible
	// gateways (Azure, LiteLLM, vLLM) are selected via BaseURL.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is the default embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// openAIMaxInputTokens is the per-text token limit of the embedding
	// endpoint family.
	openAIMaxInputTokens = 8192
)

// openAIModelDimensions maps known models to their native dimension so the
// provider can report it without a probe request.
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// BaseURL overrides the endpoint (default: DefaultOpenAIBaseURL).
	BaseURL string

	// Model is the embedding model (default: DefaultOpenAIModel).
	Model string

	// Dimensions overrides the reported dimension (0 = model default).
	Dimensions int

	// Timeout is the per-request timeout (default: DefaultTimeout).
	Timeout time.Duration
}

// OpenAIEmbedder generates embeddings via an OpenAI-compatible HTTP API.
type OpenAIEmbedder struct {
	client *http.Client
	config OpenAIConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

// Verify interface implementation at compile time
var _ Provider = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI-compatible embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, ctxerr.New(ctxerr.ErrCodeMissingCredentials, "OpenAI API key is required (set OPENAI_API_KEY)", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = openAIModelDimensions[cfg.Model]
	}

	return &OpenAIEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		dims:   dims,
	}, nil
}

// embeddingRequest is the POST /embeddings request body.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the POST /embeddings response body.
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// EmbedBatch generates embeddings for texts, preserving order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		// Network errors (refused, reset, DNS) and timeouts are transient.
		return nil, ctxerr.TransientEmbeddingError("embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return nil, ctxerr.TransientEmbeddingError("failed to read embedding response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPStatus(resp.StatusCode, payload)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, ctxerr.EmbeddingError("failed to parse embedding response", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, ctxerr.EmbeddingError(
			fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Data)), nil)
	}

	// The API documents index-annotated results; order by index to be safe.
	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, ctxerr.EmbeddingError(fmt.Sprintf("embedding index %d out of range", d.Index), nil)
		}
		vectors[d.Index] = d.Embedding
	}

	e.mu.Lock()
	if e.dims == 0 && len(vectors[0]) > 0 {
		e.dims = len(vectors[0])
	}
	e.mu.Unlock()

	return vectors, nil
}

// classifyHTTPStatus maps an HTTP error status onto the error taxonomy.
func classifyHTTPStatus(status int, payload []byte) error {
	msg := fmt.Sprintf("embedding API returned %d", status)
	var parsed embeddingResponse
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Error != nil {
		msg = fmt.Sprintf("embedding API returned %d: %s", status, parsed.Error.Message)
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return ctxerr.TransientEmbeddingError(msg, nil)
	case isOversizePayload(payload):
		return ctxerr.New(ctxerr.ErrCodeEmbeddingOversize, msg, nil)
	default:
		// 401/403 auth, 404 model-not-found, other 4xx: permanent.
		return ctxerr.EmbeddingError(msg, nil)
	}
}

// isOversizePayload detects the context-length error shape so the caller
// can truncate and resubmit once.
func isOversizePayload(payload []byte) bool {
	s := strings.ToLower(string(payload))
	return strings.Contains(s, "maximum context length") || strings.Contains(s, "context_length_exceeded")
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// MaxInputTokens returns the per-text token limit.
func (e *OpenAIEmbedder) MaxInputTokens() int {
	return openAIMaxInputTokens
}

// ProviderName returns the provider identifier.
func (e *OpenAIEmbedder) ProviderName() string {
	return "openai/" + e.config.Model
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
