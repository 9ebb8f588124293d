package processor

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
	Logger       *slog.Logger
}

// Processor splits text into overlapping chunks. Sizes are counted in runes.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) *Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 500
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = 0
	}
	if config.Separator == "" {
		config.Separator = "."
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Processor{
		config: config,
	}
}

// Split cuts text after every separator and regroups the pieces into
// chunks of at most ChunkSize runes. Consecutive chunks share trailing
// pieces of up to ChunkOverlap runes. A piece longer than ChunkSize is
// emitted on its own.
func (p *Processor) Split(text string) []string {
	return p.mergePieces(p.splitPieces(text))
}

// Documents wraps chunks for indexing.
func (p *Processor) Documents(chunks []string) []schema.Document {
	docs := make([]schema.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, schema.Document{
			PageContent: chunk,
			Metadata: map[string]any{
				"chunk": i,
			},
		})
	}
	return docs
}

func (p *Processor) splitPieces(text string) []string {
	var pieces []string
	for _, piece := range strings.SplitAfter(text, p.config.Separator) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		pieces = append(pieces, piece)
	}
	return pieces
}

func (p *Processor) mergePieces(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		size := utf8.RuneCountInString(piece)

		if total+size > p.config.ChunkSize && len(current) > 0 {
			if total > p.config.ChunkSize {
				p.config.Logger.Warn("chunk exceeds target size",
					"size", total, "chunk_size", p.config.ChunkSize)
			}
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}

			// Drop leading pieces until what is left fits in the overlap
			// window and leaves room for the next piece.
			for len(current) > 0 && (total > p.config.ChunkOverlap || total+size > p.config.ChunkSize) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += size
	}

	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		if total > p.config.ChunkSize {
			p.config.Logger.Warn("chunk exceeds target size",
				"size", total, "chunk_size", p.config.ChunkSize)
		}
		chunks = append(chunks, chunk)
	}

	return chunks
}
