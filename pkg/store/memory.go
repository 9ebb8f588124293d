package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/webqa/internal/types"
)

// MemoryStore is a brute-force cosine index held in process memory.
type MemoryStore struct {
	embedder embeddings.Embedder
	docs     []schema.Document
	vectors  [][]float32
}

var _ vectorstores.VectorStore = (*MemoryStore)(nil)

func NewMemoryStore(embedder embeddings.Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

func (ms *MemoryStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := applyOptions(ms.embedder, options)
	if opts.Embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}

	vectors, err := opts.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = strconv.Itoa(len(ms.docs))
		ms.docs = append(ms.docs, doc)
		ms.vectors = append(ms.vectors, vectors[i])
	}
	return ids, nil
}

func (ms *MemoryStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(ms.embedder, options)
	if opts.Embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	if numDocuments <= 0 || len(ms.docs) == 0 {
		return nil, nil
	}

	queryVector, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embeddings: %w", err)
	}

	type scored struct {
		index int
		score float32
	}
	results := make([]scored, 0, len(ms.docs))
	for i, vector := range ms.vectors {
		score := cosineSimilarity(queryVector, vector)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		results = append(results, scored{index: i, score: score})
	}

	// Stable so that equal scores keep insertion order.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].score > results[b].score
	})
	if len(results) > numDocuments {
		results = results[:numDocuments]
	}

	docs := make([]schema.Document, 0, len(results))
	for _, r := range results {
		doc := ms.docs[r.index]
		doc.Score = r.score
		docs = append(docs, doc)
	}
	return docs, nil
}

// Release drops all documents.
func (ms *MemoryStore) Release(context.Context) error {
	ms.docs = nil
	ms.vectors = nil
	return nil
}

// MemoryFactory hands out a fresh MemoryStore per submission.
type MemoryFactory struct {
	Embedder embeddings.Embedder
}

func (f MemoryFactory) NewIndex(context.Context) (types.Index, error) {
	return NewMemoryStore(f.Embedder), nil
}

func applyOptions(embedder embeddings.Embedder, options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{Embedder: embedder}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
