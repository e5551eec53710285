// Package ai runs mailbox analysis through a prioritized chain of
// interchangeable backends with a rule-based local terminal fallback.
package ai

import (
	"context"
	"fmt"

	"github.com/daniellauding/email-cleaner/internal/inbox"
	"github.com/daniellauding/email-cleaner/internal/insight"
)

// EmailSummary is the per-message input shared by all providers
type EmailSummary struct {
	Subject string `json:"subject"`
	From    string `json:"from"`
	Snippet string `json:"snippet"`
}

// InsightRequest is the aggregate input for insight generation
type InsightRequest struct {
	Stats    inbox.Stats             `json:"stats"`
	Patterns insight.PatternAnalysis `json:"patterns"`
}

// Provider is one analysis backend. IsAvailable must be a cheap synchronous
// capability check (credentials present, not a network probe).
type Provider interface {
	Name() string
	IsAvailable() bool

	GenerateInsights(ctx context.Context, req InsightRequest) (string, error)
	SummarizeEmails(ctx context.Context, emails []EmailSummary) (string, error)
	CategorizeEmail(ctx context.Context, email EmailSummary) (string, error)
}

// ProviderError marks a backend as unreachable or returning an error
// payload; the chain reacts by advancing.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerErr(name string, err error) error {
	return &ProviderError{Provider: name, Err: err}
}
