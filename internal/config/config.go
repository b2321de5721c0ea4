package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Chunking   ChunkingConfig   `yaml:"chunking,omitempty"`
	Store      StoreConfig      `yaml:"store"`
	Ingest     IngestConfig     `yaml:"ingest,omitempty"`
	Search     SearchConfig     `yaml:"search,omitempty"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" | "openai"

	// Ollama specific
	Host  string `yaml:"host"`
	Model string `yaml:"model"`

	// OpenAI specific
	OpenAIAPIKey string `yaml:"openai_api_key,omitempty"`
	OpenAIModel  string `yaml:"openai_model,omitempty"`

	Dimensions     int `yaml:"dimensions"`      // Vector size of the model output
	TimeoutSeconds int `yaml:"timeout_seconds"` // Per-request timeout
}

// CompletionConfig holds text-generation service configuration
type CompletionConfig struct {
	Host              string  `yaml:"host"`
	Model             string  `yaml:"model"`
	Stream            bool    `yaml:"stream"`
	AnswerTemperature float64 `yaml:"answer_temperature"` // Grounded question answering
	ChatTemperature   float64 `yaml:"chat_temperature"`   // Non-grounded chat mode
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

// ChunkingConfig holds document splitting configuration
type ChunkingConfig struct {
	PageSeparator   string   `yaml:"page_separator,omitempty"`
	OverlapFraction float64  `yaml:"overlap_fraction"`         // In [0,1)
	MaxChunkSize    int      `yaml:"max_chunk_size"`           // Hard ceiling in bytes
	CleanPatterns   []string `yaml:"clean_patterns,omitempty"` // Regexp denylist removed from page text
}

// StoreConfig holds vector store backend configuration
type StoreConfig struct {
	Backend string `yaml:"backend"` // "qdrant" | "local"

	QdrantURL    string `yaml:"qdrant_url,omitempty"`
	QdrantAPIKey string `yaml:"qdrant_api_key,omitempty"`

	// Path for the local sqlite-backed store and the keyword index.
	// If empty, uses ~/.ragpipe/data
	LocalPath string `yaml:"local_path,omitempty"`

	Collection string `yaml:"collection"`
	Distance   string `yaml:"distance,omitempty"` // Cosine only for now
}

// IngestConfig holds ingestion-specific configuration
type IngestConfig struct {
	MaxWorkers int      `yaml:"max_workers,omitempty"` // Concurrent embedding requests
	Include    []string `yaml:"include,omitempty"`     // Glob patterns for directory ingestion
	Exclude    []string `yaml:"exclude,omitempty"`     // Glob patterns skipped during directory ingestion
}

// SearchConfig holds retrieval configuration
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k,omitempty"` // Matches retrieved per question
}

// Load loads configuration from the default config file
// Default location: ~/.ragpipe/config/ragpipe.yaml
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".ragpipe", "config", "ragpipe.yaml")
	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			homeDir, _ := os.UserHomeDir()
			defaultPath := filepath.Join(homeDir, ".ragpipe", "config", "ragpipe.yaml")
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with -config flag\n"+
		"  3. Run 'ragpipe init' to create a config file",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ApplyDefaults sets default values for missing configuration
func (c *Config) ApplyDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Host == "" {
		c.Embedding.Host = "http://localhost:11434"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.TimeoutSeconds == 0 {
		c.Embedding.TimeoutSeconds = 30
	}

	if c.Completion.Host == "" {
		c.Completion.Host = c.Embedding.Host
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "qwen2.5-coder:3b"
	}
	if c.Completion.AnswerTemperature == 0 {
		c.Completion.AnswerTemperature = 0.1
	}
	if c.Completion.ChatTemperature == 0 {
		c.Completion.ChatTemperature = 0.7
	}
	if c.Completion.MaxTokens == 0 {
		c.Completion.MaxTokens = 500
	}
	if c.Completion.TimeoutSeconds == 0 {
		c.Completion.TimeoutSeconds = 120
	}

	if c.Chunking.PageSeparator == "" {
		c.Chunking.PageSeparator = "-----"
	}
	if c.Chunking.OverlapFraction == 0 {
		c.Chunking.OverlapFraction = 0.2
	}
	if c.Chunking.MaxChunkSize == 0 {
		c.Chunking.MaxChunkSize = 2048
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "local"
	}
	if c.Store.QdrantURL == "" {
		c.Store.QdrantURL = "http://localhost:6333"
	}
	if c.Store.LocalPath != "" {
		c.Store.LocalPath = expandPath(c.Store.LocalPath)
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "rag_documents"
	}
	if c.Store.Distance == "" {
		c.Store.Distance = "Cosine"
	}

	if c.Ingest.MaxWorkers == 0 {
		c.Ingest.MaxWorkers = 4
	}
	if len(c.Ingest.Include) == 0 {
		c.Ingest.Include = []string{"**/*.md", "**/*.txt", "**/*.pdf"}
	}

	if c.Search.DefaultTopK == 0 {
		c.Search.DefaultTopK = 5
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama":
		if c.Embedding.Host == "" {
			return fmt.Errorf("ollama provider requires host")
		}
	case "openai":
		if c.Embedding.OpenAIAPIKey == "" {
			return fmt.Errorf("openai provider requires openai_api_key")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got: %d", c.Embedding.Dimensions)
	}

	if c.Chunking.OverlapFraction < 0 || c.Chunking.OverlapFraction >= 1 {
		return fmt.Errorf("overlap_fraction must be in [0,1), got: %g", c.Chunking.OverlapFraction)
	}
	if c.Chunking.MaxChunkSize <= 0 {
		return fmt.Errorf("max_chunk_size must be positive, got: %d", c.Chunking.MaxChunkSize)
	}

	switch c.Store.Backend {
	case "qdrant":
		if c.Store.QdrantURL == "" {
			return fmt.Errorf("qdrant backend requires qdrant_url")
		}
	case "local":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	if c.Store.Distance != "Cosine" {
		return fmt.Errorf("unsupported distance metric: %s", c.Store.Distance)
	}

	if c.Ingest.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got: %d", c.Ingest.MaxWorkers)
	}

	return nil
}

// DataDir returns the directory holding the local store and keyword index.
func (c *Config) DataDir() (string, error) {
	if c.Store.LocalPath != "" {
		return c.Store.LocalPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ragpipe", "data"), nil
}

const defaultConfigTemplate = `# ragpipe Configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.ragpipe/config/ragpipe.yaml

embedding:
  # Provider: "ollama" or "openai"
  provider: ollama
  host: http://localhost:11434
  model: nomic-embed-text
  dimensions: 768
  timeout_seconds: 30

  # OpenAI configuration (alternative)
  # provider: openai
  # openai_api_key: your-openai-api-key
  # openai_model: text-embedding-3-small
  # dimensions: 1536

completion:
  host: http://localhost:11434
  model: qwen2.5-coder:3b
  stream: true
  answer_temperature: 0.1
  chat_temperature: 0.7
  max_tokens: 500

chunking:
  page_separator: "-----"
  overlap_fraction: 0.2
  max_chunk_size: 2048
  # clean_patterns:
  #   - '<span class="latex-block">.*?</span>'

store:
  # Backend: "local" (sqlite) or "qdrant"
  backend: local
  collection: rag_documents
  # qdrant_url: http://localhost:6333
  # qdrant_api_key: your-api-key
  # local_path: ~/.ragpipe/data

ingest:
  max_workers: 4

search:
  default_top_k: 5
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
