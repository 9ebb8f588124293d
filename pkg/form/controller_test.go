package form_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/webqa/internal/models"
	"github.com/xhad/webqa/internal/testutil"
	"github.com/xhad/webqa/pkg/form"
	"github.com/xhad/webqa/pkg/llm"
	"github.com/xhad/webqa/pkg/processor"
	"github.com/xhad/webqa/pkg/rag"
	"github.com/xhad/webqa/pkg/store"
)

type stubRunner struct {
	calls    int
	urls     []string
	question string
	answer   *models.Answer
	err      error
	messages []string
}

func (s *stubRunner) Run(ctx context.Context, urls []string, question string, r rag.Reporter) (*models.Answer, error) {
	s.calls++
	s.urls = urls
	s.question = question
	for _, msg := range s.messages {
		r.Error(msg)
	}
	return s.answer, s.err
}

type listener struct {
	events []string
}

func (l *listener) Status(msg string)  { l.events = append(l.events, "status:"+msg) }
func (l *listener) Warning(msg string) { l.events = append(l.events, "warning:"+msg) }
func (l *listener) Error(msg string)   { l.events = append(l.events, "error:"+msg) }
func (l *listener) Token(chunk string) { l.events = append(l.events, "token:"+chunk) }

func TestSubmit_MissingInput(t *testing.T) {
	tests := []struct {
		name string
		sub  form.Submission
	}{
		{"empty urls", form.Submission{URLs: "", Question: "anything"}},
		{"blank urls", form.Submission{URLs: " \n\t\n", Question: "anything"}},
		{"empty question", form.Submission{URLs: "https://example.com", Question: "  "}},
		{"both empty", form.Submission{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{}
			c := form.NewController(runner, nil)

			view, err := c.Submit(context.Background(), tt.sub, nil)
			require.ErrorIs(t, err, form.ErrMissingInput)

			assert.Equal(t, form.StateIdle, view.State)
			assert.Equal(t, []form.Message{{Kind: form.KindWarning, Text: form.MsgMissingInput}}, view.Visible())
			assert.Zero(t, runner.calls)
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	runner := &stubRunner{answer: &models.Answer{Result: "Renewable energy."}}
	c := form.NewController(runner, nil)

	view, err := c.Submit(context.Background(), form.Submission{
		URLs:     " https://example.com/a \r\n\nhttps://example.com/b\n",
		Question: " What is the main topic? ",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, form.StateDone, view.State)
	assert.Equal(t, "Renewable energy.", view.Answer)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, runner.urls)
	assert.Equal(t, "What is the main topic?", runner.question)
	assert.Empty(t, view.Visible())
}

func TestSubmit_NoContent(t *testing.T) {
	runner := &stubRunner{
		err:      rag.ErrNoContent,
		messages: []string{"Error fetching https://bad.url: refused", rag.MsgNoContent},
	}
	c := form.NewController(runner, nil)

	view, err := c.Submit(context.Background(), form.Submission{URLs: "https://bad.url", Question: "q"}, nil)
	require.ErrorIs(t, err, rag.ErrNoContent)

	assert.Equal(t, form.StateDone, view.State)
	assert.Empty(t, view.Answer)
	assert.Equal(t, []form.Message{
		{Kind: form.KindError, Text: "Error fetching https://bad.url: refused"},
		{Kind: form.KindError, Text: rag.MsgNoContent},
	}, view.Visible())
}

func TestSubmit_UnhandledError(t *testing.T) {
	runner := &stubRunner{err: errors.New("failed to generate answer: invalid api key")}
	c := form.NewController(runner, nil)

	view, err := c.Submit(context.Background(), form.Submission{URLs: "https://example.com", Question: "q"}, nil)
	require.Error(t, err)

	assert.Equal(t, form.StateDone, view.State)
	assert.Equal(t, []form.Message{
		{Kind: form.KindError, Text: "failed to generate answer: invalid api key"},
	}, view.Visible())
}

func TestSubmit_ForwardsToListener(t *testing.T) {
	runner := &stubRunner{err: rag.ErrNoContent, messages: []string{rag.MsgNoContent}}
	c := form.NewController(runner, nil)
	l := &listener{}

	_, _ = c.Submit(context.Background(), form.Submission{URLs: "", Question: "q"}, l)
	_, _ = c.Submit(context.Background(), form.Submission{URLs: "https://x.example", Question: "q"}, l)

	assert.Equal(t, []string{
		"warning:" + form.MsgMissingInput,
		"error:" + rag.MsgNoContent,
	}, l.events)
}

func TestSubmit_EndToEnd(t *testing.T) {
	model := &testutil.MockModel{}
	engine, err := llm.NewWithModel(model, llm.ChatConfig{Temperature: 0.7, MaxTokens: 100})
	require.NoError(t, err)

	fetcher := &testutil.MockFetcher{
		Pages: map[string]string{
			"https://example.com/article": "The article discusses renewable energy.",
		},
		Errors: map[string]error{
			"https://bad.url": errors.New("dial tcp: connection refused"),
		},
	}
	pipeline := rag.New(fetcher,
		processor.NewWithConfig(processor.ProcessorConfig{}),
		store.MemoryFactory{Embedder: &testutil.HashEmbedder{}},
		engine, engine, rag.Options{}, nil)
	c := form.NewController(pipeline, nil)

	view, err := c.Submit(context.Background(), form.Submission{
		URLs:     "https://example.com/article",
		Question: "What is the main topic?",
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, view.Answer, "renewable energy")

	view, err = c.Submit(context.Background(), form.Submission{
		URLs:     "https://bad.url",
		Question: "What is the main topic?",
	}, nil)
	require.ErrorIs(t, err, rag.ErrNoContent)
	assert.Equal(t, []form.Message{
		{Kind: form.KindError, Text: "Error fetching https://bad.url: dial tcp: connection refused"},
		{Kind: form.KindError, Text: "Failed to retrieve content from URLs"},
	}, view.Visible())
	assert.Len(t, model.Prompts(), 1)
}

func TestParseURLs(t *testing.T) {
	assert.Nil(t, form.ParseURLs(""))
	assert.Equal(t, []string{"a", "b"}, form.ParseURLs("a\n\n  b  \n"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", form.StateIdle.String())
	assert.Equal(t, "processing", form.StateProcessing.String())
	assert.Equal(t, "done", form.StateDone.String())
}
