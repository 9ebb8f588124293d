// Package form implements the question form: it validates a submission,
// drives the pipeline and collects what should be displayed.
package form

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/xhad/webqa/internal/models"
	"github.com/xhad/webqa/pkg/rag"
)

const MsgMissingInput = "Please provide both URLs and a question"

var ErrMissingInput = errors.New("missing URLs or question")

type State int

const (
	StateIdle State = iota
	StateProcessing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type MessageKind string

const (
	KindStatus  MessageKind = "status"
	KindWarning MessageKind = "warning"
	KindError   MessageKind = "error"
)

type Message struct {
	Kind MessageKind
	Text string
}

// Submission is the raw form input. URLs is newline separated.
type Submission struct {
	URLs     string
	Question string
}

// Runner is the part of the pipeline the controller needs.
type Runner interface {
	Run(ctx context.Context, urls []string, question string, r rag.Reporter) (*models.Answer, error)
}

// Listener observes a submission as it runs, e.g. to stream it to a client.
type Listener interface {
	rag.Reporter
	Warning(msg string)
}

// View is what gets rendered after a submission.
type View struct {
	State    State
	URLs     string
	Question string
	Messages []Message
	Answer   string

	listener Listener
}

func (v *View) Status(msg string) {
	v.Messages = append(v.Messages, Message{Kind: KindStatus, Text: msg})
	if v.listener != nil {
		v.listener.Status(msg)
	}
}

func (v *View) Warning(msg string) {
	v.Messages = append(v.Messages, Message{Kind: KindWarning, Text: msg})
	if v.listener != nil {
		v.listener.Warning(msg)
	}
}

func (v *View) Error(msg string) {
	v.Messages = append(v.Messages, Message{Kind: KindError, Text: msg})
	if v.listener != nil {
		v.listener.Error(msg)
	}
}

func (v *View) Token(chunk string) {
	if v.listener != nil {
		v.listener.Token(chunk)
	}
}

// Visible returns the messages worth showing once the run is over.
func (v *View) Visible() []Message {
	var out []Message
	for _, m := range v.Messages {
		if m.Kind == KindStatus {
			continue
		}
		out = append(out, m)
	}
	return out
}

type Controller struct {
	runner Runner
	logger *slog.Logger
}

func NewController(runner Runner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{runner: runner, logger: logger}
}

// Idle returns the empty form.
func (c *Controller) Idle() *View {
	return &View{State: StateIdle}
}

// Submit runs one submission to completion. listener may be nil.
func (c *Controller) Submit(ctx context.Context, sub Submission, listener Listener) (*View, error) {
	view := &View{
		State:    StateIdle,
		URLs:     sub.URLs,
		Question: sub.Question,
		listener: listener,
	}

	urls := ParseURLs(sub.URLs)
	question := strings.TrimSpace(sub.Question)
	if len(urls) == 0 || question == "" {
		view.Warning(MsgMissingInput)
		return view, ErrMissingInput
	}

	view.State = StateProcessing
	answer, err := c.runner.Run(ctx, urls, question, view)
	view.State = StateDone
	if err != nil {
		if !errors.Is(err, rag.ErrNoContent) {
			c.logger.Error("submission failed", "urls", len(urls), "error", err)
			view.Error(err.Error())
		}
		return view, err
	}

	view.Answer = answer.Result
	return view, nil
}

// ParseURLs splits newline separated input, dropping blank lines.
func ParseURLs(raw string) []string {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		if url := strings.TrimSpace(line); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}
