package models

import "github.com/tmc/langchaingo/schema"

// Page is the text extracted from a single fetched URL.
type Page struct {
	URL     string
	Title   string
	Content string
}

// Answer is the outcome of one question. Only Result is shown to the user.
type Answer struct {
	Query           string
	Result          string
	Prompt          string
	SourceDocuments []schema.Document
}
