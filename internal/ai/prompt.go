package ai

import (
	"fmt"
	"strings"
)

// Prompt builders shared by the remote providers. Each provider receives the
// same semantic input; only the answer formatting differs per backend.

func insightPrompt(req InsightRequest) string {
	var b strings.Builder
	b.WriteString("You are an email management assistant. Based on the mailbox statistics below, ")
	b.WriteString("write three short, concrete recommendations for cleaning up this inbox.\n\n")
	fmt.Fprintf(&b, "Total emails: %d\n", req.Stats.TotalEmails)
	fmt.Fprintf(&b, "Unread emails: %d\n", req.Stats.UnreadEmails)
	fmt.Fprintf(&b, "Newsletters: %d (unread: %d)\n", req.Patterns.Newsletters, req.Patterns.UnreadNewsletters)
	fmt.Fprintf(&b, "Emails older than 30 days: %d\n", req.Patterns.OldEmails)
	fmt.Fprintf(&b, "Emails larger than 5 MB: %d\n", req.Patterns.LargeEmails)
	fmt.Fprintf(&b, "Duplicate emails: %d\n", req.Patterns.Duplicates)
	return b.String()
}

func summaryPrompt(emails []EmailSummary) string {
	var b strings.Builder
	b.WriteString("Summarize the following emails in a few sentences, grouping by topic:\n\n")
	for i, e := range emails {
		fmt.Fprintf(&b, "%d. From: %s | Subject: %s | %s\n", i+1, e.From, e.Subject, e.Snippet)
	}
	return b.String()
}

func categoryPrompt(email EmailSummary) string {
	return fmt.Sprintf(
		"Classify this email into exactly one of: newsletter, promotional, work, personal, social, transactional, spam, other. "+
			"Answer with the single category word.\n\nFrom: %s\nSubject: %s\nPreview: %s",
		email.From, email.Subject, email.Snippet)
}
