package inbox

import (
	"regexp"
	"strings"
)

// Category is the semantic bucket a message falls into
type Category string

const (
	CategoryNewsletter    Category = "newsletter"
	CategoryPromotional   Category = "promotional"
	CategoryWork          Category = "work"
	CategoryPersonal      Category = "personal"
	CategorySocial        Category = "social"
	CategoryTransactional Category = "transactional"
	CategorySpam          Category = "spam"
	CategoryOther         Category = "other"
)

// Keyword tables for classification. Categories are resolved strictly in the
// order of classifyRules; a message matching several tables gets the first.
var (
	// Newsletter indicators checked against sender and subject. The presence
	// of a List-Unsubscribe header counts as a match on its own.
	newsletterTerms = []string{
		"newsletter", "noreply", "no-reply", "donotreply", "marketing",
		"promo", "unsubscribe", "digest", "weekly", "monthly", "updates",
	}

	promotionalTerms = []string{
		"sale", "% off", "discount", "deal", "offer", "coupon", "save now",
		"limited time", "free shipping", "clearance", "buy now", "flash sale",
		"black friday", "cyber monday",
	}

	workTerms = []string{
		"meeting", "project", "deadline", "invoice", "proposal", "agenda",
		"standup", "sprint", "review requested", "pull request", "jira",
		"timesheet", "quarterly", "report attached",
	}

	socialTerms = []string{
		"friend request", "followed you", "mentioned you", "tagged you",
		"commented on", "liked your", "new follower", "connection request",
		"facebook", "instagram", "linkedin", "twitter",
	}

	transactionalTerms = []string{
		"receipt", "order confirmation", "your order", "shipped", "delivery",
		"payment received", "invoice #", "booking confirmation", "reservation",
		"password reset", "verification code", "account statement", "tracking number",
	}

	// Indicators of automated mail. Personal is only assigned when none of
	// these appear and nothing else matched.
	automatedTerms = []string{
		"noreply", "no-reply", "donotreply", "do-not-reply", "auto-reply",
		"automated", "notification", "alert@", "system@", "mailer-daemon",
	}

	// Phishing indicators checked against subject and sender
	phishingTerms = []string{
		"urgent", "verify account", "suspended", "click here",
		"limited time", "act now", "confirm identity",
	}

	// Short TLDs disproportionately used by throwaway phishing domains
	phishingTLDs = []string{".tk", ".ml"}

	longDigitRun = regexp.MustCompile(`\d{5,}`)
)

type classifyRule struct {
	category Category
	match    func(text string, m *Message) bool
}

// classifyRules is the fixed priority order. First match wins; rules are
// never combined.
var classifyRules = []classifyRule{
	{CategoryNewsletter, func(_ string, m *Message) bool { return IsNewsletter(m) }},
	{CategoryPromotional, func(text string, _ *Message) bool { return containsAny(text, promotionalTerms) }},
	{CategoryWork, func(text string, _ *Message) bool { return containsAny(text, workTerms) }},
	{CategorySocial, func(text string, _ *Message) bool { return containsAny(text, socialTerms) }},
	{CategoryTransactional, func(text string, _ *Message) bool { return containsAny(text, transactionalTerms) }},
	{CategoryPersonal, looksPersonal},
}

// Classify maps a message to its category. Deterministic and pure: it
// evaluates the rule tables against a lowercased concatenation of subject,
// sender and snippet, returning the first matching category.
func Classify(m *Message) Category {
	text := strings.ToLower(m.Subject + " " + m.From + " " + m.Snippet)
	for _, rule := range classifyRules {
		if rule.match(text, m) {
			return rule.category
		}
	}
	return CategoryOther
}

// IsNewsletter reports whether the message looks like bulk/subscription
// mail. It is deliberately independent from Classify so search queries and
// stats can use it directly: any newsletter term in sender or subject, or a
// List-Unsubscribe header, is enough.
func IsNewsletter(m *Message) bool {
	if m.ListUnsubscribe != "" {
		return true
	}
	sender := strings.ToLower(m.From)
	subject := strings.ToLower(m.Subject)
	for _, term := range newsletterTerms {
		if strings.Contains(sender, term) || strings.Contains(subject, term) {
			return true
		}
	}
	return false
}

// looksPersonal is the fallback for short, non-automated-looking mail. It
// only fires when no other category matched and no unsubscribe indicators
// are present.
func looksPersonal(text string, m *Message) bool {
	if m.ListUnsubscribe != "" || m.UnsubscribeLink != "" {
		return false
	}
	if containsAny(text, automatedTerms) {
		return false
	}
	return len(m.Snippet) < 300
}

// LooksPhishy applies the phishing-indicator heuristic used by the security
// insight: a suspicious term in subject or sender, a blocklisted TLD, or a
// run of five or more digits in the sender domain.
func LooksPhishy(m *Message) bool {
	text := strings.ToLower(m.Subject + " " + m.From)
	if containsAny(text, phishingTerms) {
		return true
	}
	domain := m.SenderDomain()
	for _, tld := range phishingTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	return longDigitRun.MatchString(domain)
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// CountByCategory classifies a batch and tallies the result
func CountByCategory(messages []Message) map[Category]int {
	counts := make(map[Category]int)
	for i := range messages {
		counts[Classify(&messages[i])]++
	}
	return counts
}
