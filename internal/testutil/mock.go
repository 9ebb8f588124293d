// Package testutil provides deterministic stand-ins for the model and
// network collaborators of the pipeline.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

// HashEmbedder embeds text as a hashed bag of lowercase words, so texts that
// share words score closer under cosine similarity.
type HashEmbedder struct {
	Dim int
	Err error

	mu    sync.Mutex
	calls int
}

func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	return e.embed(text), nil
}

// Calls reports how many embedding requests were made.
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *HashEmbedder) embed(text string) []float32 {
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}
	vector := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[h.Sum32()%uint32(dim)]++
	}
	return vector
}

// MockModel is an llms.Model that records prompts and call options and
// returns Reply, or Err when set. An empty Reply echoes the prompt back.
// Streaming callers get the reply word by word.
type MockModel struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []string
	options []llms.CallOptions
}

func (m *MockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt.String())
	m.options = append(m.options, opts)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	reply := m.Reply
	if reply == "" {
		reply = prompt.String()
	}
	if opts.StreamingFunc != nil {
		for _, word := range strings.SplitAfter(reply, " ") {
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply}},
	}, nil
}

func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Prompts returns every prompt seen so far.
func (m *MockModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the call options of the most recent call.
func (m *MockModel) LastOptions() llms.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return llms.CallOptions{}
	}
	return m.options[len(m.options)-1]
}

// MockFetcher serves Pages by URL and fails with Errors[url] when present.
// Unknown URLs return an empty page.
type MockFetcher struct {
	Pages  map[string]string
	Errors map[string]error

	mu      sync.Mutex
	fetched []string
}

func (f *MockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()

	if err, ok := f.Errors[url]; ok {
		return "", err
	}
	return f.Pages[url], nil
}

// Fetched returns the URLs requested, in order.
func (f *MockFetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}
