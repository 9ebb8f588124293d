package types

import (
	"context"

	"github.com/tmc/langchaingo/vectorstores"
)

// Core interfaces
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Chunker interface {
	Split(text string) []string
}

// Index is a vector store scoped to a single submission. Release drops
// everything that was added to it.
type Index interface {
	vectorstores.VectorStore
	Release(ctx context.Context) error
}

type IndexFactory interface {
	NewIndex(ctx context.Context) (Index, error)
}

// Generator runs one completion. onChunk, when non-nil, receives the
// output as it streams in.
type Generator interface {
	Generate(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}
