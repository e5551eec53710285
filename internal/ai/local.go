package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/daniellauding/email-cleaner/internal/inbox"
)

// LocalProvider is the rule-based terminal fallback. It has no external
// dependency and IsAvailable is always true, which is what lets a chain
// ending in it never fail. Its categorization goes through the exact same
// rule table as inbox.Classify so AI and non-AI paths agree.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider { return &LocalProvider{} }

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) IsAvailable() bool { return true }

func (p *LocalProvider) GenerateInsights(_ context.Context, req InsightRequest) (string, error) {
	var b strings.Builder
	b.WriteString("Inbox analysis:\n")

	if req.Stats.TotalEmails > 0 {
		unreadPct := req.Stats.UnreadEmails * 100 / req.Stats.TotalEmails
		fmt.Fprintf(&b, "- %d emails total, %d unread (%d%%).\n", req.Stats.TotalEmails, req.Stats.UnreadEmails, unreadPct)
		if unreadPct > 30 {
			b.WriteString("- Your unread ratio is high; consider marking old mail as read.\n")
		}
	}
	if req.Patterns.UnreadNewsletters > 0 {
		fmt.Fprintf(&b, "- %d newsletters are unread; unsubscribing would reduce future volume.\n", req.Patterns.UnreadNewsletters)
	}
	if req.Patterns.LargeEmails > 0 {
		fmt.Fprintf(&b, "- %d emails exceed 5 MB; deleting them frees the most space.\n", req.Patterns.LargeEmails)
	}
	if req.Patterns.OldEmails > 0 {
		fmt.Fprintf(&b, "- %d emails are older than 30 days and can likely be archived.\n", req.Patterns.OldEmails)
	}
	if req.Patterns.Duplicates > 0 {
		fmt.Fprintf(&b, "- %d duplicate emails detected.\n", req.Patterns.Duplicates)
	}
	return b.String(), nil
}

func (p *LocalProvider) SummarizeEmails(_ context.Context, emails []EmailSummary) (string, error) {
	if len(emails) == 0 {
		return "No emails to summarize.", nil
	}

	counts := make(map[inbox.Category]int)
	senders := make(map[string]bool)
	for _, e := range emails {
		msg := inbox.Message{Subject: e.Subject, From: e.From, Snippet: e.Snippet}
		counts[inbox.Classify(&msg)]++
		senders[e.From] = true
	}

	var parts []string
	for _, c := range []inbox.Category{
		inbox.CategoryNewsletter, inbox.CategoryPromotional, inbox.CategoryWork,
		inbox.CategorySocial, inbox.CategoryTransactional, inbox.CategoryPersonal,
		inbox.CategoryOther,
	} {
		if counts[c] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[c], c))
		}
	}
	return fmt.Sprintf("%d emails from %d senders: %s.", len(emails), len(senders), strings.Join(parts, ", ")), nil
}

func (p *LocalProvider) CategorizeEmail(_ context.Context, email EmailSummary) (string, error) {
	msg := inbox.Message{Subject: email.Subject, From: email.From, Snippet: email.Snippet}
	return string(inbox.Classify(&msg)), nil
}
