package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig represents the configuration for the embedding model.
type EmbedderConfig struct {
	Provider  string // "ollama" or "openai"
	Model     string
	BaseURL   string // Ollama server URL
	APIKey    string // OpenAI only
	BatchSize int
}

// NewEmbedderWithConfig builds the process-wide embedder. The default is
// all-minilm (sentence-transformers/all-MiniLM-L6-v2) served by a local Ollama.
func NewEmbedderWithConfig(config EmbedderConfig) (embeddings.Embedder, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}

	var client embeddings.EmbedderClient
	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "all-minilm"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		emb, err := ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		client = emb
	case "openai":
		if config.Model == "" {
			config.Model = "text-embedding-3-small"
		}
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		emb, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embedder: %w", err)
		}
		client = emb
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", config.Provider)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return embedder, nil
}
