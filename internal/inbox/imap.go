package inbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/daniellauding/email-cleaner/internal/config"
)

// IMAPGateway implements Gateway against a plain IMAP server for mailboxes
// that are not on Gmail. It supports a documented subset of the query
// grammar: "is:unread" and "before:YYYY/MM/DD" fragments translate to IMAP
// search criteria; anything else is rejected up front. Labels map onto IMAP
// flags and folders (UNREAD -> \Seen, TRASH -> a move to Trash).
type IMAPGateway struct {
	config config.MailboxConfig
	client *client.Client
}

func NewIMAPGateway(cfg config.MailboxConfig) *IMAPGateway {
	return &IMAPGateway{config: cfg}
}

// Connect establishes the IMAP session
func (g *IMAPGateway) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", g.config.Server, g.config.Port)

	log.Printf("Connecting to IMAP server %s...", addr)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(g.config.Address, g.config.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	g.client = c
	log.Printf("Logged in as %s", g.config.Address)
	return nil
}

// Disconnect closes the IMAP session
func (g *IMAPGateway) Disconnect() error {
	if g.client != nil {
		return g.client.Logout()
	}
	return nil
}

// criteriaFromQuery translates supported query fragments to IMAP search
// criteria. Unsupported fragments are a caller error, not a silent miss.
func criteriaFromQuery(query string) (*imap.SearchCriteria, error) {
	criteria := imap.NewSearchCriteria()
	for _, fragment := range strings.Fields(query) {
		switch {
		case fragment == "is:unread":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.SeenFlag)
		case strings.HasPrefix(fragment, "before:"):
			t, err := time.Parse("2006/01/02", strings.TrimPrefix(fragment, "before:"))
			if err != nil {
				return nil, fmt.Errorf("invalid before: fragment %q: %w", fragment, err)
			}
			criteria.Before = t
		default:
			return nil, fmt.Errorf("query fragment %q is not supported on imap mailboxes", fragment)
		}
	}
	return criteria, nil
}

func (g *IMAPGateway) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*ListResult, error) {
	if g.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	criteria, err := criteriaFromQuery(query)
	if err != nil {
		return nil, err
	}

	mbox, err := g.client.Select(g.config.Folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", g.config.Folder, err)
	}
	if mbox.Messages == 0 {
		return &ListResult{}, nil
	}

	uids, err := g.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}

	// The page token is an offset into the stable UID list
	offset := 0
	if pageToken != "" {
		offset, err = strconv.Atoi(pageToken)
		if err != nil || offset < 0 || offset > len(uids) {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
	}

	result := &ListResult{ResultSizeEstimate: int64(len(uids))}
	end := offset + int(maxResults)
	if maxResults <= 0 || end > len(uids) {
		end = len(uids)
	}
	if end < len(uids) {
		result.NextPageToken = strconv.Itoa(end)
	}
	page := uids[offset:end]
	if len(page) == 0 {
		return result, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(page...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, imap.FetchRFC822Size, section.FetchItem()}

	messages := make(chan *imap.Message, len(page))
	done := make(chan error, 1)
	go func() {
		done <- g.client.UidFetch(seqSet, items, messages)
	}()

	for msg := range messages {
		m, err := g.parseMessage(msg, section)
		if err != nil {
			log.Printf("Warning: failed to parse message: %v", err)
			continue
		}
		if m != nil {
			result.Messages = append(result.Messages, *m)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return result, nil
}

func (g *IMAPGateway) GetMessage(ctx context.Context, id string, format Format) (*Message, error) {
	if g.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	if _, err := g.client.Select(g.config.Folder, false); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", g.config.Folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, imap.FetchRFC822Size, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- g.client.UidFetch(seqSet, items, messages)
	}()

	var found *Message
	for msg := range messages {
		m, err := g.parseMessage(msg, section)
		if err == nil && m != nil {
			found = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if found == nil {
		return nil, fmt.Errorf("message %s not found", id)
	}
	if format == FormatMetadata {
		found.Body = ""
	}
	return found, nil
}

// parseMessage converts an IMAP message into the shared Message model
func (g *IMAPGateway) parseMessage(msg *imap.Message, section *imap.BodySectionName) (*Message, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	m := &Message{
		ID:           strconv.FormatUint(uint64(msg.Uid), 10),
		Subject:      msg.Envelope.Subject,
		Date:         msg.Envelope.Date,
		SizeEstimate: int64(msg.Size),
		Unread:       true,
	}
	if len(msg.Envelope.From) > 0 {
		from := msg.Envelope.From[0]
		if from.PersonalName != "" {
			m.From = fmt.Sprintf("%s <%s>", from.PersonalName, from.Address())
		} else {
			m.From = from.Address()
		}
	}
	if len(msg.Envelope.To) > 0 {
		m.To = msg.Envelope.To[0].Address()
	}
	for _, flag := range msg.Flags {
		if flag == imap.SeenFlag {
			m.Unread = false
		}
	}
	if m.Unread {
		m.Labels = append(m.Labels, LabelUnread)
	}

	r := msg.GetBody(section)
	if r == nil {
		m.IsNewsletter = IsNewsletter(m)
		return m, nil
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		m.IsNewsletter = IsNewsletter(m)
		return m, nil // keep envelope data even when the body will not parse
	}

	if lu := mr.Header.Get("List-Unsubscribe"); lu != "" {
		m.ListUnsubscribe = lu
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if h, ok := p.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)
			if strings.HasPrefix(ct, "text/plain") && plain == "" {
				plain = string(body)
			} else if strings.HasPrefix(ct, "text/html") && html == "" {
				html = string(body)
			}
		}
	}

	if html != "" {
		m.Body = html
	} else {
		m.Body = plain
	}
	if m.Snippet == "" && plain != "" {
		m.Snippet = snippetOf(plain)
	}
	m.IsNewsletter = IsNewsletter(m)
	if info := ExtractUnsubscribeInfo(m.Body, m.ListUnsubscribe); info.Found {
		m.UnsubscribeLink = info.Links[0]
	}
	return m, nil
}

func snippetOf(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 160 {
		return text[:160]
	}
	return text
}

func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid imap message id %q: %w", id, err)
	}
	return uint32(uid), nil
}

// BatchModify maps label mutations onto IMAP flags. Supported: removing
// UNREAD (adds \Seen), adding UNREAD (removes \Seen), adding TRASH (moves
// to the Trash folder). Other labels have no IMAP equivalent.
func (g *IMAPGateway) BatchModify(ctx context.Context, ids, addLabels, removeLabels []string) error {
	if g.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}
	if len(ids) == 0 {
		return fmt.Errorf("batch modify: empty message ID list")
	}

	seqSet := new(imap.SeqSet)
	for _, id := range ids {
		uid, err := parseUID(id)
		if err != nil {
			return err
		}
		seqSet.AddNum(uid)
	}

	if _, err := g.client.Select(g.config.Folder, false); err != nil {
		return fmt.Errorf("failed to select mailbox %s: %w", g.config.Folder, err)
	}

	for _, label := range removeLabels {
		if label == LabelUnread {
			item := imap.FormatFlagsOp(imap.AddFlags, true)
			if err := g.client.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
				return fmt.Errorf("failed to mark %d messages read: %w", len(ids), err)
			}
		}
	}
	for _, label := range addLabels {
		switch label {
		case LabelUnread:
			item := imap.FormatFlagsOp(imap.RemoveFlags, true)
			if err := g.client.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
				return fmt.Errorf("failed to mark %d messages unread: %w", len(ids), err)
			}
		case LabelTrash:
			if err := g.client.UidMove(seqSet, "Trash"); err != nil {
				return fmt.Errorf("failed to move %d messages to trash: %w", len(ids), err)
			}
		default:
			return fmt.Errorf("label %q is not supported on imap mailboxes", label)
		}
	}
	return nil
}

// Send is not available over IMAP; the mailto unsubscribe path uses the
// configured outgoing sender instead
func (g *IMAPGateway) Send(ctx context.Context, raw string) error {
	return fmt.Errorf("sending is not supported on imap mailboxes; configure an email sender")
}
