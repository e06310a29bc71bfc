// Package config loads and validates code-context configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// environment variables. Environment reads happen only here; the rest of
// the engine receives an explicit Config value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the indexing engine.
const (
	// DefaultChunkSize is the structural splitter's chunk budget in characters.
	DefaultChunkSize = 2500

	// DefaultChunkOverlap is the overlap between adjacent chunks in characters.
	DefaultChunkOverlap = 300

	// DefaultEmbeddingBatchSize is the number of chunk texts per embedding request.
	DefaultEmbeddingBatchSize = 100

	// DefaultMaxChunks is the hard cap on chunks per indexing run.
	DefaultMaxChunks = 450_000

	// DefaultMaxFileSize is the maximum file size to index (1MB).
	DefaultMaxFileSize = 1 * 1024 * 1024

	// DefaultSearchTopK is the default number of search results.
	DefaultSearchTopK = 10

	// DefaultSearchThreshold drops hits below this similarity.
	DefaultSearchThreshold = 0.3
)

// Config is the complete engine configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Splitter  SplitterConfig  `yaml:"splitter" json:"splitter"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Ignore    IgnoreConfig    `yaml:"ignore" json:"ignore"`
	LogLevel  string          `yaml:"log_level" json:"log_level"`
}

// StorageConfig configures on-disk layout.
type StorageConfig struct {
	// BaseDir is the root data directory (default: ~/.code-context).
	// The vectors directory defaults to <BaseDir>/vectors and can be
	// overridden independently via VECTOR_DB_PATH.
	BaseDir    string `yaml:"base_dir" json:"base_dir"`
	VectorsDir string `yaml:"vectors_dir" json:"vectors_dir"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider selects the embedder: "openai", "ollama", or "static".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model identifier.
	Model string `yaml:"model" json:"model"`

	// Dimensions overrides the provider-reported dimension (0 = use provider).
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// APIKey authenticates remote providers. Usually set via OPENAI_API_KEY.
	APIKey string `yaml:"api_key" json:"api_key"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways).
	BaseURL string `yaml:"base_url" json:"base_url"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// Timeout is the per-batch request timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// SplitterConfig configures chunking.
type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// IndexConfig configures the orchestrator.
type IndexConfig struct {
	// Hybrid enables the lexical FTS table alongside the dense table.
	Hybrid bool `yaml:"hybrid" json:"hybrid"`

	// MaxChunks is the hard cap on chunks per indexing run.
	MaxChunks int `yaml:"max_chunks" json:"max_chunks"`

	// MaxFileSize is the maximum file size to index in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// IgnoreConfig configures file selection.
type IgnoreConfig struct {
	// CustomPatterns are additional gitignore-style exclusion patterns.
	CustomPatterns []string `yaml:"custom_patterns" json:"custom_patterns"`

	// CustomExtensions extends the built-in extension allowlist.
	CustomExtensions []string `yaml:"custom_extensions" json:"custom_extensions"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	base := defaultBaseDir()
	return &Config{
		Storage: StorageConfig{
			BaseDir:    base,
			VectorsDir: filepath.Join(base, "vectors"),
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			BatchSize:  DefaultEmbeddingBatchSize,
			OllamaHost: "http://localhost:11434",
			Timeout:    60 * time.Second,
		},
		Splitter: SplitterConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Index: IndexConfig{
			Hybrid:      true,
			MaxChunks:   DefaultMaxChunks,
			MaxFileSize: DefaultMaxFileSize,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from the given YAML file (if it exists), merges
// it over the defaults, and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = filepath.Join(defaultBaseDir(), "config.yaml")
	}
	data, err := os.ReadFile(path)
	if err == nil {
		defaultVectors := cfg.Storage.VectorsDir
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if cfg.Storage.VectorsDir == defaultVectors {
			cfg.Storage.VectorsDir = filepath.Join(cfg.Storage.BaseDir, "vectors")
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("VECTOR_DB_PATH"); v != "" {
		c.Storage.VectorsDir = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaHost = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("HYBRID_MODE"); v != "" {
		c.Index.Hybrid = v != "false" && v != "0"
	}
	if v := os.Getenv("MAX_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.MaxChunks = n
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai", "ollama", "static":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = DefaultEmbeddingBatchSize
	}
	if c.Splitter.ChunkSize <= 0 {
		c.Splitter.ChunkSize = DefaultChunkSize
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, chunk size %d)", c.Splitter.ChunkOverlap, c.Splitter.ChunkSize)
	}
	if c.Index.MaxChunks <= 0 {
		c.Index.MaxChunks = DefaultMaxChunks
	}
	if c.Index.MaxFileSize <= 0 {
		c.Index.MaxFileSize = DefaultMaxFileSize
	}
	return nil
}

// MerkleDir returns the snapshot directory.
func (c *Config) MerkleDir() string {
	return filepath.Join(c.Storage.BaseDir, "merkle")
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".code-context")
	}
	return filepath.Join(home, ".code-context")
}
