// Package unsub executes unsubscribe actions discovered by the inbox
// detector.
package unsub

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/daniellauding/email-cleaner/internal/inbox"
)

const (
	requestTimeout = 10 * time.Second
	userAgent      = "email-cleaner/1.0 (unsubscribe agent)"
)

// Result reports the outcome of one unsubscribe attempt. Failures are
// returned here, never raised: a batch must not abort on one bad link.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Executor performs unsubscribe requests. The zero value is not usable;
// call NewExecutor.
type Executor struct {
	client *http.Client
	dryRun bool
}

func NewExecutor(dryRun bool) *Executor {
	return &Executor{
		client: &http.Client{
			Timeout: requestTimeout,
			// Redirects are not followed: a 3xx already counts as the
			// provider accepting the request
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dryRun: dryRun,
	}
}

// NewExecutorWithClient exists for tests that need to stub transport
func NewExecutorWithClient(client *http.Client) *Executor {
	return &Executor{client: client}
}

// Perform executes the top candidate of an unsubscribe detection. Only the
// first link is used. mailto targets are never auto-executed: they are
// surfaced for manual (or operator-confirmed) action. HTTP targets get one
// GET; any 2xx or 3xx status counts as success, everything else is a
// failure with the status in the message. No confirmation page is parsed.
func (e *Executor) Perform(ctx context.Context, info inbox.UnsubscribeInfo) Result {
	if !info.Found || len(info.Links) == 0 {
		return Result{Success: false, Message: "no unsubscribe link found"}
	}

	link := info.Links[0]

	if strings.HasPrefix(strings.ToLower(link), "mailto:") {
		target := strings.TrimPrefix(link, "mailto:")
		if q := strings.Index(target, "?"); q >= 0 {
			target = target[:q]
		}
		return Result{
			Success: false,
			Message: fmt.Sprintf("unsubscribe requires sending email to %s", target),
		}
	}

	if !strings.HasPrefix(strings.ToLower(link), "http") {
		return Result{Success: false, Message: fmt.Sprintf("unsupported unsubscribe link: %s", link)}
	}

	if e.dryRun {
		return Result{Success: true, Message: fmt.Sprintf("[dry-run] would GET %s", link)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("invalid unsubscribe link: %v", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("unsubscribe request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return Result{Success: true, Message: fmt.Sprintf("unsubscribe request accepted (status %d)", resp.StatusCode)}
	}
	return Result{Success: false, Message: fmt.Sprintf("unsubscribe request rejected (status %d)", resp.StatusCode)}
}

// ItemResult is the per-message outcome of a batch run
type ItemResult struct {
	MessageID  string  `json:"messageId"`
	Sender     string  `json:"sender"`
	Domain     string  `json:"domain"`
	Link       string  `json:"link,omitempty"`
	Method     string  `json:"method,omitempty"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
}

// BatchResult carries counts plus the itemized outcomes so callers can tell
// partial from total success
type BatchResult struct {
	Processed  int          `json:"processed"`
	Successful int          `json:"successful"`
	Items      []ItemResult `json:"items"`
}

// ProcessBatch runs detection and execution over a message list. Messages
// must already carry their bodies (FormatFull). Items are independent: a
// failure is recorded and the loop continues.
func (e *Executor) ProcessBatch(ctx context.Context, messages []inbox.Message) BatchResult {
	result := BatchResult{}
	for i := range messages {
		m := &messages[i]
		item := ItemResult{
			MessageID: m.ID,
			Sender:    m.From,
			Domain:    m.SenderDomain(),
		}

		info := inbox.ExtractUnsubscribeInfo(m.Body, m.ListUnsubscribe)
		if !info.Found {
			item.Message = "no unsubscribe link found"
		} else {
			item.Link = info.Links[0]
			item.Method = string(info.Method)
			item.Confidence = info.Confidence

			r := e.Perform(ctx, info)
			item.Success = r.Success
			item.Message = r.Message
		}

		if item.Success {
			result.Successful++
		} else {
			log.Printf("unsubscribe %s (%s): %s", m.ID, item.Domain, item.Message)
		}
		result.Processed++
		result.Items = append(result.Items, item)
	}
	return result
}

// GroupByDomain buckets messages by sender domain. Messages with an
// unparseable sender land in "unknown".
func GroupByDomain(messages []inbox.Message) map[string][]inbox.Message {
	groups := make(map[string][]inbox.Message)
	for i := range messages {
		domain := messages[i].SenderDomain()
		groups[domain] = append(groups[domain], messages[i])
	}
	return groups
}
