package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36"

type Config struct {
	LLM struct {
		Provider    string  `yaml:"provider"`
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Embedder struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embedder"`

	Scraper struct {
		UserAgent string        `yaml:"user_agent"`
		Timeout   time.Duration `yaml:"timeout"`
		RateLimit float64       `yaml:"rate_limit"`
	} `yaml:"scraper"`

	Processor struct {
		ChunkSize    int    `yaml:"chunk_size"`
		ChunkOverlap int    `yaml:"chunk_overlap"`
		Separator    string `yaml:"separator"`
	} `yaml:"processor"`

	Retrieval struct {
		TopK    int    `yaml:"top_k"`
		Backend string `yaml:"backend"`
	} `yaml:"retrieval"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Server struct {
		Addr      string `yaml:"addr"`
		Streaming bool   `yaml:"streaming"`
		GinMode   string `yaml:"gin_mode"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/webqa/config.yaml"),
			"/etc/webqa/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Unmarshal over the defaults so explicit zero values survive.
	config := newDefaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(config)
	applyProviderDefaults(config)

	return config, nil
}

func getDefaultConfig() (*Config, error) {
	config := newDefaults()
	mergeWithEnv(config)
	applyProviderDefaults(config)
	return config, nil
}

// newDefaults returns the values used for anything the config file leaves out.
func newDefaults() *Config {
	config := &Config{}

	config.LLM.Provider = "openai"
	config.LLM.MaxTokens = 100
	config.LLM.Temperature = 0.7

	config.Embedder.Provider = "ollama"
	config.Embedder.BatchSize = 64

	config.Scraper.UserAgent = DefaultUserAgent
	config.Scraper.Timeout = 15 * time.Second

	config.Processor.ChunkSize = 500
	config.Processor.ChunkOverlap = 100
	config.Processor.Separator = "."

	config.Retrieval.TopK = 4
	config.Retrieval.Backend = "memory"

	config.Database.TableName = "webqa_chunks"
	config.Database.VectorDim = 384 // all-minilm

	config.Server.Addr = ":8080"
	config.Server.GinMode = "release"

	return config
}

// applyProviderDefaults fills the values that depend on the chosen providers.
func applyProviderDefaults(config *Config) {
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "ollama":
			config.LLM.Model = "mistral"
		default:
			config.LLM.Model = "gpt-4o"
		}
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedder.Model == "" {
		switch config.Embedder.Provider {
		case "openai":
			config.Embedder.Model = "text-embedding-3-small"
		default:
			config.Embedder.Model = "all-minilm"
		}
	}
	if config.Embedder.BaseURL == "" && config.Embedder.Provider == "ollama" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI"); key != "" {
		config.LLM.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedder.BaseURL = baseURL
		if config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}
