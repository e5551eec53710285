package inbox

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Method describes how an unsubscribe target was discovered
type Method string

const (
	MethodLink   Method = "link"   // anchor in the message body
	MethodHeader Method = "header" // List-Unsubscribe header
	MethodForm   Method = "form"   // <form> element in the message body
	MethodEmail  Method = "email"  // mailto-only candidates
)

// UnsubscribeInfo is the result of unsubscribe detection. Found is true iff
// Links is non-empty.
type UnsubscribeInfo struct {
	Found      bool     `json:"found"`
	Links      []string `json:"links"`
	Method     Method   `json:"method,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Terms that qualify an anchor as an unsubscribe candidate. Either the href
// or the anchor text must contain one of these.
var unsubscribeLinkTerms = []string{
	"unsubscribe", "optout", "opt-out", "remove", "stop",
	"email-preferences", "preferences",
}

// Anchor-text phrases that select candidate anchors
var unsubscribeTextHints = []string{
	"unsubscribe", "opt out", "remove me", "stop emails", "email preferences",
}

// href substrings that select candidate anchors
var unsubscribeHrefHints = []string{"unsubscribe", "optout", "opt-out"}

// ExtractUnsubscribeInfo detects unsubscribe targets in a message. The
// List-Unsubscribe header takes precedence: when it yields any usable token
// the body is not parsed at all. Otherwise the body is parsed as HTML and
// candidate anchors and forms are collected with a heuristic confidence.
func ExtractUnsubscribeInfo(body, listUnsubscribe string) UnsubscribeInfo {
	if links := parseListUnsubscribe(listUnsubscribe); len(links) > 0 {
		return UnsubscribeInfo{
			Found:      true,
			Links:      links,
			Method:     MethodHeader,
			Confidence: 0.9,
		}
	}
	return parseBodyForUnsubscribe(body)
}

// parseListUnsubscribe extracts the <...> bracketed tokens of a
// List-Unsubscribe header, keeping only http(s) and mailto targets
func parseListUnsubscribe(header string) []string {
	if header == "" {
		return nil
	}
	var links []string
	rest := header
	for {
		open := strings.Index(rest, "<")
		if open < 0 {
			break
		}
		close := strings.Index(rest[open:], ">")
		if close < 0 {
			break
		}
		token := strings.TrimSpace(rest[open+1 : open+close])
		if strings.HasPrefix(token, "http") || strings.HasPrefix(token, "mailto:") {
			links = append(links, token)
		}
		rest = rest[open+close+1:]
	}
	return links
}

func parseBodyForUnsubscribe(body string) UnsubscribeInfo {
	info := UnsubscribeInfo{}
	if body == "" {
		return info
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// Un-parseable content is treated as "nothing found", not an error
		return info
	}

	seen := make(map[string]bool)
	mailtoOnly := true

	addCandidate := func(link string) {
		link = strings.TrimSpace(link)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		info.Links = append(info.Links, link)
		if !strings.HasPrefix(link, "mailto:") {
			mailtoOnly = false
		}
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		lowerHref := strings.ToLower(href)

		if !anchorIsCandidate(s, lowerHref, text) {
			return
		}
		if !validUnsubscribeHref(lowerHref) {
			return
		}
		if !containsAny(lowerHref, unsubscribeLinkTerms) && !containsAny(text, unsubscribeLinkTerms) {
			return
		}
		addCandidate(href)
	})

	formMatched := false
	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		inner, err := s.Html()
		if err != nil {
			return
		}
		lowerInner := strings.ToLower(inner)
		if !strings.Contains(lowerInner, "unsubscribe") && !strings.Contains(lowerInner, "opt out") {
			return
		}
		formMatched = true
		if action, ok := s.Attr("action"); ok && strings.TrimSpace(action) != "" {
			addCandidate(action)
		}
	})

	if len(info.Links) == 0 {
		return info
	}

	info.Found = true
	switch {
	case formMatched:
		info.Method = MethodForm
	case mailtoOnly:
		info.Method = MethodEmail
	default:
		info.Method = MethodLink
	}
	info.Confidence = contentConfidence(body, info.Links)
	return info
}

// anchorIsCandidate selects anchors worth validating: href hints, anchor
// text hints, or id/class/data-attribute hints
func anchorIsCandidate(s *goquery.Selection, lowerHref, text string) bool {
	if containsAny(lowerHref, unsubscribeHrefHints) {
		return true
	}
	if containsAny(text, unsubscribeTextHints) {
		return true
	}
	for _, attr := range []string{"id", "class", "data-action", "data-role"} {
		if v, ok := s.Attr(attr); ok && strings.Contains(strings.ToLower(v), "unsubscribe") {
			return true
		}
	}
	return false
}

// validUnsubscribeHref rejects empty, fragment-only and script pseudo-URLs
func validUnsubscribeHref(lowerHref string) bool {
	if lowerHref == "" || lowerHref == "#" {
		return false
	}
	if strings.HasPrefix(lowerHref, "javascript:") {
		return false
	}
	return strings.HasPrefix(lowerHref, "http") || strings.HasPrefix(lowerHref, "mailto:")
}

// contentConfidence scores content-parsed candidates: base 0.5, plus 0.1 per
// occurrence of "unsubscribe" in the body (capped at 0.3), plus 0.2 scaled
// by the fraction of https links. Clamped to [0,1].
func contentConfidence(body string, links []string) float64 {
	score := 0.5

	occurrences := strings.Count(strings.ToLower(body), "unsubscribe")
	bump := float64(occurrences) * 0.1
	if bump > 0.3 {
		bump = 0.3
	}
	score += bump

	https := 0
	for _, link := range links {
		if strings.HasPrefix(strings.ToLower(link), "https") {
			https++
		}
	}
	if len(links) > 0 {
		score += float64(https) / float64(len(links)) * 0.2
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
