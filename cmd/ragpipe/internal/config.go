package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ragpipe/ragpipe/internal/config"
)

// LoadConfig reads the YAML configuration from configPath, falling back
// to the default location when the path is empty.
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ragpipe", "config", "ragpipe.yaml"), nil
}

// PrintConfigExample shows a minimal working configuration on stderr.
func PrintConfigExample() {
	path, _ := DefaultConfigPath()

	fmt.Fprintf(os.Stderr, `Create a configuration file at %s:

embedding:
  # Provider: "ollama" | "openai"
  provider: ollama
  host: http://localhost:11434
  model: nomic-embed-text
  dimensions: 768

completion:
  host: http://localhost:11434
  model: qwen2.5-coder:3b

store:
  # Backend: "local" (sqlite) | "qdrant"
  backend: local
  collection: rag_documents

# For OpenAI embeddings, use:
# embedding:
#   provider: openai
#   openai_api_key: your-openai-api-key
#   openai_model: text-embedding-3-small
#   dimensions: 1536

Usage:
  1. Run: ragpipe init
  2. Edit the generated config for your environment
  3. Ingest: ragpipe ingest /path/to/docs
  4. Ask: ragpipe query "your question"
`, path)
}
