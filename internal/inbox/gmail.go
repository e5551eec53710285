package inbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailGateway implements Gateway against the Gmail REST API
type GmailGateway struct {
	service *gmail.Service
}

// NewGmailGateway builds a gateway from OAuth client credentials and a
// previously cached token. Obtaining the initial token is the caller's
// responsibility (see AuthorizeURL / Exchange).
func NewGmailGateway(ctx context.Context, credentialsFile, tokenFile string) (*GmailGateway, error) {
	cfg, err := loadOAuthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := readToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached token (run `email-cleaner init` first): %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &GmailGateway{service: svc}, nil
}

func loadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailModifyScope, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return cfg, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return &tok, nil
}

// SaveToken caches an exchanged token with owner-only permissions
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// AuthorizeURL returns the consent URL for the interactive init flow
func AuthorizeURL(credentialsFile string) (string, error) {
	cfg, err := loadOAuthConfig(credentialsFile)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an auth code for a token and caches it
func Exchange(ctx context.Context, credentialsFile, tokenFile, code string) error {
	cfg, err := loadOAuthConfig(credentialsFile)
	if err != nil {
		return err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return SaveToken(tokenFile, tok)
}

func (g *GmailGateway) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*ListResult, error) {
	call := g.service.Users.Messages.List("me").Context(ctx).MaxResults(maxResults)
	if query != "" {
		call = call.Q(query)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	page, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	result := &ListResult{
		NextPageToken:      page.NextPageToken,
		ResultSizeEstimate: page.ResultSizeEstimate,
	}
	for _, ref := range page.Messages {
		msg, err := g.GetMessage(ctx, ref.Id, FormatMetadata)
		if err != nil {
			return nil, err
		}
		result.Messages = append(result.Messages, *msg)
	}
	return result, nil
}

func (g *GmailGateway) GetMessage(ctx context.Context, id string, format Format) (*Message, error) {
	call := g.service.Users.Messages.Get("me", id).Context(ctx)
	if format == FormatMetadata {
		call = call.Format("metadata").
			MetadataHeaders("Subject", "From", "To", "Date", "List-Unsubscribe")
	} else {
		call = call.Format("full")
	}
	raw, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return messageFromGmail(raw, format), nil
}

func messageFromGmail(raw *gmail.Message, format Format) *Message {
	m := &Message{
		ID:           raw.Id,
		ThreadID:     raw.ThreadId,
		Snippet:      raw.Snippet,
		Labels:       raw.LabelIds,
		SizeEstimate: raw.SizeEstimate,
		Date:         time.UnixMilli(raw.InternalDate),
	}
	if raw.Payload != nil {
		for _, h := range raw.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				m.Subject = h.Value
			case "from":
				m.From = h.Value
			case "to":
				m.To = h.Value
			case "list-unsubscribe":
				m.ListUnsubscribe = h.Value
			}
		}
	}
	m.Unread = m.HasLabel(LabelUnread)
	m.IsNewsletter = IsNewsletter(m)

	if format == FormatFull && raw.Payload != nil {
		m.Body = extractHTMLBody(raw.Payload)
		if info := ExtractUnsubscribeInfo(m.Body, m.ListUnsubscribe); info.Found {
			m.UnsubscribeLink = info.Links[0]
		}
	}
	return m
}

// extractHTMLBody walks the MIME tree preferring text/html over text/plain
func extractHTMLBody(part *gmail.MessagePart) string {
	if body := findBodyByMime(part, "text/html"); body != "" {
		return body
	}
	return findBodyByMime(part, "text/plain")
}

func findBodyByMime(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if body := findBodyByMime(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func (g *GmailGateway) BatchModify(ctx context.Context, ids, addLabels, removeLabels []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("batch modify: empty message ID list")
	}
	req := &gmail.BatchModifyMessagesRequest{
		Ids:            ids,
		AddLabelIds:    addLabels,
		RemoveLabelIds: removeLabels,
	}
	if err := g.service.Users.Messages.BatchModify("me", req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to modify %d messages: %w", len(ids), err)
	}
	return nil
}

func (g *GmailGateway) Send(ctx context.Context, raw string) error {
	if raw == "" {
		return fmt.Errorf("send: empty message")
	}
	_, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
