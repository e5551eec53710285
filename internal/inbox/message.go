package inbox

import (
	"strings"
	"time"
)

// Message is one mailbox entry. It is constructed by a Gateway on fetch and
// treated as immutable afterwards, except for Unread which a label mutation
// may clear.
type Message struct {
	ID              string    // provider message ID (opaque, unique)
	ThreadID        string    // provider thread/conversation ID
	Subject         string
	From            string // raw sender header, e.g. `Jane <jane@foo.com>`
	To              string
	Date            time.Time
	Snippet         string // short preview text
	Unread          bool
	Labels          []string
	SizeEstimate    int64  // size in bytes
	IsNewsletter    bool   // derived on fetch via IsNewsletter()
	UnsubscribeLink string // first link discovered during fetch, if any
	ListUnsubscribe string // raw List-Unsubscribe header value, if present
	Body            string // HTML body, populated only on FormatFull fetches
}

// HasLabel reports whether the message carries the given label
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// SenderDomain extracts the domain portion of the From header: the substring
// after "@" up to the first ">" or end of string, lowercased. Unparseable
// senders yield "unknown".
func (m *Message) SenderDomain() string {
	at := strings.Index(m.From, "@")
	if at < 0 || at == len(m.From)-1 {
		return "unknown"
	}
	domain := m.From[at+1:]
	if end := strings.Index(domain, ">"); end >= 0 {
		domain = domain[:end]
	}
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return "unknown"
	}
	return domain
}

// Stats holds aggregate mailbox counters consumed by the insight generator
// and the AI providers.
type Stats struct {
	TotalEmails   int `json:"totalEmails"`
	UnreadEmails  int `json:"unreadEmails"`
	Newsletters   int `json:"newsletters"`
	TotalSizeMB   int `json:"totalSizeMB"`
	OldestUnread  int `json:"oldestUnreadDays,omitempty"`
	UniqueSenders int `json:"uniqueSenders,omitempty"`
}

// ComputeStats aggregates the counters over a fetched message set
func ComputeStats(messages []Message) Stats {
	var stats Stats
	var totalBytes int64
	var oldestUnread time.Time
	senders := make(map[string]bool)

	stats.TotalEmails = len(messages)
	for i := range messages {
		m := &messages[i]
		if m.Unread {
			stats.UnreadEmails++
			if !m.Date.IsZero() && (oldestUnread.IsZero() || m.Date.Before(oldestUnread)) {
				oldestUnread = m.Date
			}
		}
		if m.IsNewsletter {
			stats.Newsletters++
		}
		totalBytes += m.SizeEstimate
		senders[strings.ToLower(m.From)] = true
	}

	stats.TotalSizeMB = int(totalBytes / (1024 * 1024))
	stats.UniqueSenders = len(senders)
	if !oldestUnread.IsZero() {
		stats.OldestUnread = int(time.Since(oldestUnread).Hours() / 24)
	}
	return stats
}
