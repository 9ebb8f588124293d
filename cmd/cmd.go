package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/webqa/pkg/form"
)

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// terminalListener prints a submission's progress as it happens.
type terminalListener struct {
	spinner   *progressbar.ProgressBar
	assistant func(format string, a ...interface{})
	streamed  bool
}

func (l *terminalListener) Status(msg string) {
	l.finish()
	l.spinner = getSpinner("🔍 " + msg)
}

func (l *terminalListener) Warning(msg string) {
	l.finish()
	color.Yellow("%s", msg)
}

func (l *terminalListener) Error(msg string) {
	l.finish()
	color.Red("%s", msg)
}

func (l *terminalListener) Token(chunk string) {
	if !l.streamed {
		l.finish()
		l.assistant("\nAssistant: ")
		l.streamed = true
	}
	fmt.Print(chunk)
}

func (l *terminalListener) finish() {
	if l.spinner == nil {
		return
	}
	_ = l.spinner.Finish()
	l.spinner = nil
	fmt.Print("\r\n")
}

func runInteractive(ctx context.Context, controller *form.Controller) error {
	color.Cyan("\nAsk questions about web pages (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	read := func(prompt string) (string, bool) {
		userPrompt(prompt)
		if !scanner.Scan() {
			return "", false
		}
		text := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(text), "exit") {
			return "", false
		}
		return text, true
	}

	for {
		urls, ok := read("\nURLs (space separated): ")
		if !ok {
			break
		}
		question, ok := read("Question: ")
		if !ok {
			break
		}

		l := &terminalListener{assistant: assistantPrompt}
		view, err := controller.Submit(ctx, form.Submission{
			URLs:     strings.Join(strings.Fields(urls), "\n"),
			Question: question,
		}, l)
		l.finish()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			continue
		}
		if l.streamed {
			fmt.Print("\n")
		} else {
			assistantPrompt("\nAssistant: %s\n", view.Answer)
		}
	}

	return scanner.Err()
}
