package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

const (
	// QuestionPrefix is prepended to every user question.
	QuestionPrefix = "Answer this question in minimum words: "

	defaultPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider       string // "openai" or "ollama"
	Model          string
	Temperature    float64
	MaxTokens      int
	APIKey         string
	BaseURL        string
	PromptTemplate string
}

// ChatEngine is an engine that uses an LLM to answer from retrieved context.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
	prompt prompts.PromptTemplate
}

// NewWithConfig creates a new ChatEngine backed by the configured provider.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}

	var model llms.Model
	switch config.Provider {
	case "openai":
		if config.Model == "" {
			config.Model = "gpt-4o"
		}
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		model = llm
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		llm, err := ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		model = llm
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", config.Provider)
	}

	return NewWithModel(model, config)
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, config ChatConfig) (*ChatEngine, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 100
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = defaultPromptTemplate
	}

	return &ChatEngine{
		config: config,
		llm:    model,
		prompt: prompts.NewPromptTemplate(config.PromptTemplate, []string{"context", "question"}),
	}, nil
}

// BuildPrompt stuffs the retrieved documents and the question into the
// prompt template.
func (ce *ChatEngine) BuildPrompt(docs []schema.Document, question string) (string, error) {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.PageContent)
	}

	prompt, err := ce.prompt.Format(map[string]any{
		"context":  strings.Join(parts, "\n\n"),
		"question": QuestionPrefix + question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}
	return prompt, nil
}

// Generate sends prompt as a single completion and returns the text
// verbatim. When onChunk is set the response is streamed through it.
func (ce *ChatEngine) Generate(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			onChunk(string(chunk))
			return nil
		}))
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, ce.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	return answer, nil
}
