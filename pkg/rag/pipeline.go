// Package rag runs the scrape, chunk, embed, retrieve and answer pipeline
// for a single submission.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/webqa/internal/models"
	"github.com/xhad/webqa/internal/types"
)

// DefaultTopK is the number of chunks handed to the model.
const DefaultTopK = 4

const (
	MsgNoContent = "Failed to retrieve content from URLs"
	MsgAnalyzing = "Analyzing content..."
)

// ErrNoContent means every URL failed or produced no text.
var ErrNoContent = errors.New("no content retrieved")

// Reporter receives the messages shown to the user while a submission runs.
type Reporter interface {
	Status(msg string)
	Error(msg string)
	// Token receives streamed answer text. Only called when streaming is on.
	Token(chunk string)
}

// PromptBuilder assembles the final prompt from retrieved documents.
type PromptBuilder interface {
	BuildPrompt(docs []schema.Document, question string) (string, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK      int
	Streaming bool
}

// Pipeline holds the long-lived collaborators. It keeps no per-submission
// state, so one value serves every request.
type Pipeline struct {
	fetcher   types.Fetcher
	chunker   Chunker
	indexes   types.IndexFactory
	prompts   PromptBuilder
	generator types.Generator
	opts      Options
	logger    *slog.Logger
}

// Chunker splits text and wraps the pieces as documents.
type Chunker interface {
	types.Chunker
	Documents(chunks []string) []schema.Document
}

func New(fetcher types.Fetcher, chunker Chunker, indexes types.IndexFactory, prompts PromptBuilder, generator types.Generator, opts Options, logger *slog.Logger) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:   fetcher,
		chunker:   chunker,
		indexes:   indexes,
		prompts:   prompts,
		generator: generator,
		opts:      opts,
		logger:    logger,
	}
}

// Run answers question from the content of urls.
func (p *Pipeline) Run(ctx context.Context, urls []string, question string, r Reporter) (*models.Answer, error) {
	if r == nil {
		r = nopReporter{}
	}
	start := time.Now()
	r.Status(MsgAnalyzing)

	content := p.fetchAll(ctx, urls, r)
	if strings.TrimSpace(content) == "" {
		r.Error(MsgNoContent)
		return nil, ErrNoContent
	}

	index, err := p.buildIndex(ctx, content)
	if err != nil {
		return nil, err
	}
	defer func() {
		// The request context may already be done; cleanup still has to run.
		if err := index.Release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("failed to release index", "error", err)
		}
	}()

	docs, err := p.retrieve(ctx, index, question)
	if err != nil {
		return nil, err
	}

	prompt, err := p.prompts.BuildPrompt(docs, question)
	if err != nil {
		return nil, err
	}

	var onChunk func(string)
	if p.opts.Streaming {
		onChunk = r.Token
	}
	result, err := p.generator.Generate(ctx, prompt, onChunk)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	p.logger.Info("answered question",
		"urls", len(urls),
		"sources", len(docs),
		"duration", time.Since(start))

	return &models.Answer{
		Query:           question,
		Result:          result,
		Prompt:          prompt,
		SourceDocuments: docs,
	}, nil
}

func (p *Pipeline) fetchAll(ctx context.Context, urls []string, r Reporter) string {
	texts := make([]string, 0, len(urls))
	for _, url := range urls {
		text, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			p.logger.Warn("fetch failed", "url", url, "error", err)
			r.Error(fmt.Sprintf("Error fetching %s: %v", url, err))
			text = ""
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n")
}

func (p *Pipeline) buildIndex(ctx context.Context, content string) (types.Index, error) {
	chunks := p.chunker.Split(content)
	docs := p.chunker.Documents(chunks)

	index, err := p.indexes.NewIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	if _, err := index.AddDocuments(ctx, docs); err != nil {
		if rerr := index.Release(context.WithoutCancel(ctx)); rerr != nil {
			p.logger.Warn("failed to release index", "error", rerr)
		}
		return nil, fmt.Errorf("failed to index documents: %w", err)
	}
	p.logger.Debug("indexed content", "chunks", len(chunks), "chars", len(content))
	return index, nil
}

func (p *Pipeline) retrieve(ctx context.Context, index vectorstores.VectorStore, question string) ([]schema.Document, error) {
	docs, err := vectorstores.ToRetriever(index, p.opts.TopK).GetRelevantDocuments(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve documents: %w", err)
	}
	return docs, nil
}

type nopReporter struct{}

func (nopReporter) Status(string) {}
func (nopReporter) Error(string)  {}
func (nopReporter) Token(string)  {}
