package inbox

import (
	"context"
	"fmt"
	"time"
)

// Format selects how much of a message a gateway fetch returns
type Format string

const (
	FormatMetadata Format = "metadata"
	FormatFull     Format = "full"
)

// ListResult is one page of a message listing
type ListResult struct {
	Messages           []Message
	NextPageToken      string
	ResultSizeEstimate int64
}

// Gateway abstracts the remote mailbox. Implementations exist for Gmail and
// plain IMAP servers; callers own retry, backoff and credential refresh.
type Gateway interface {
	// ListMessages searches the mailbox. The query uses the provider's
	// search syntax and is passed through opaquely.
	ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*ListResult, error)

	// GetMessage fetches one message by ID in the given format
	GetMessage(ctx context.Context, id string, format Format) (*Message, error)

	// BatchModify adds and removes labels on a list of messages as a single
	// remote call. An empty ID list is rejected before any network traffic.
	BatchModify(ctx context.Context, ids, addLabels, removeLabels []string) error

	// Send submits a raw RFC 2822 message, base64url-encoded
	Send(ctx context.Context, raw string) error
}

// Well-known label names shared by both gateway implementations
const (
	LabelUnread = "UNREAD"
	LabelInbox  = "INBOX"
	LabelTrash  = "TRASH"
)

// Query fragment builders. The exact substring forms matter: callers combine
// these with provider boolean operators when composing housekeeping
// searches.

// QueryBefore matches mail older than the given time
func QueryBefore(t time.Time) string {
	return fmt.Sprintf("before:%04d/%02d/%02d", t.Year(), t.Month(), t.Day())
}

// QueryUnread matches unread mail
func QueryUnread() string { return "is:unread" }

// QueryHasList matches mail carrying a List-Unsubscribe header
func QueryHasList() string { return "has:list" }

// QueryLargerMB matches mail bigger than n megabytes
func QueryLargerMB(n int) string { return fmt.Sprintf("larger:%dM", n) }

// CombineQuery joins fragments with the provider's implicit AND
func CombineQuery(fragments ...string) string {
	out := ""
	for _, f := range fragments {
		if f == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += f
	}
	return out
}
