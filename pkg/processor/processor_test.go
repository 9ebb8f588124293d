package processor_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/webqa/pkg/processor"
)

func sentences(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Sentence number %03d talks about renewable energy.", i)
	}
	return out
}

func TestSplit_Empty(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	assert.Empty(t, p.Split(""))
	assert.Empty(t, p.Split("   \n\t "))
}

func TestSplit_ShortText(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	chunks := p.Split("  The article discusses renewable energy.  ")
	assert.Equal(t, []string{"The article discusses renewable energy."}, chunks)
}

func TestSplit_Coverage(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    500,
		ChunkOverlap: 100,
	})

	parts := sentences(60)
	chunks := p.Split(strings.Join(parts, " ") + " Trailing text without a period")
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 500)
	}

	for _, sentence := range append(parts, "Trailing text without a period") {
		found := false
		for _, chunk := range chunks {
			if strings.Contains(chunk, sentence) {
				found = true
				break
			}
		}
		assert.True(t, found, "sentence missing from chunks: %q", sentence)
	}
}

func TestSplit_Overlap(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    500,
		ChunkOverlap: 100,
	})

	chunks := p.Split(strings.Join(sentences(40), " "))
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		first := chunks[i][:strings.Index(chunks[i], ".")+1]
		assert.Contains(t, chunks[i-1], first, "chunk %d does not overlap its predecessor", i)
	}
}

func TestSplit_NoOverlapRoundTrip(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    200,
		ChunkOverlap: 0,
	})

	text := strings.Join(sentences(25), " ")
	chunks := p.Split(text)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, " "))
}

func TestSplit_OversizedPiece(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
	})

	long := strings.Repeat("x", 250)
	chunks := p.Split("Short start. " + long + ". Short end.")

	require.Len(t, chunks, 3)
	assert.Equal(t, "Short start.", chunks[0])
	assert.Equal(t, long+".", chunks[1])
	assert.Equal(t, "Short end.", chunks[2])
}

func TestSplit_CountsRunes(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    10,
		ChunkOverlap: 0,
	})

	chunks := p.Split("ééééé. ééééé.")
	assert.Equal(t, []string{"ééééé.", "ééééé."}, chunks)
}

func TestSplit_CustomSeparator(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    12,
		ChunkOverlap: 0,
		Separator:    "\n",
	})

	chunks := p.Split("first line\nsecond line\n")
	assert.Equal(t, []string{"first line", "second line"}, chunks)
}

func TestDocuments(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	docs := p.Documents([]string{"one.", "two."})
	require.Len(t, docs, 2)
	assert.Equal(t, "one.", docs[0].PageContent)
	assert.Equal(t, 1, docs[1].Metadata["chunk"])
}
