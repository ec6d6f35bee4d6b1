package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/nhle/mail-manager/internal/model"
)

// IMAPGateway implements Gateway against an IMAP server using go-imap v2.
// It keeps one authenticated connection open between Connect and
// Disconnect so that a sync run pays the TLS and login cost once.
type IMAPGateway struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	folder   string

	client *imapclient.Client
}

// NewIMAPGateway creates a gateway from connection settings. The folder
// defaults to INBOX when empty.
func NewIMAPGateway(
	cfg model.MailboxConfig, password string,
) *IMAPGateway {
	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPGateway{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: password,
		tls:      cfg.TLS,
		folder:   folder,
	}
}

// Connect dials the server, authenticates, and selects the mailbox
// folder. A failed login is reported as an AuthError.
func (g *IMAPGateway) Connect(_ context.Context) error {
	addr := g.host + ":" + g.port

	var client *imapclient.Client
	var err error

	if g.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(g.username, g.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return &AuthError{
			Username: g.username,
			Message:  fmt.Sprintf("authentication failed: %v", err),
		}
	}

	if _, err := client.Select(g.folder, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return fmt.Errorf("selecting %s: %w", g.folder, err)
	}

	g.client = client
	return nil
}

// Disconnect logs out and drops the connection. Calling it without a
// prior Connect is a no-op.
func (g *IMAPGateway) Disconnect() error {
	if g.client == nil {
		return nil
	}
	err := g.client.Logout().Wait()
	g.client = nil
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// ListIdentifiers searches for messages received since the given time
// and returns their UIDs as strings, oldest first.
func (g *IMAPGateway) ListIdentifiers(
	_ context.Context, since time.Time,
) ([]string, error) {
	if g.client == nil {
		return nil, fmt.Errorf("not connected")
	}

	criteria := &imap.SearchCriteria{Since: since}
	searchData, err := g.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// FetchHeaders returns envelope-only views of the most recent messages
// since the given time, up to limit.
func (g *IMAPGateway) FetchHeaders(
	ctx context.Context, since time.Time, limit int,
) ([]model.EmailHeader, error) {
	ids, err := g.ListIdentifiers(ctx, since)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	uidSet, err := parseUIDSet(ids)
	if err != nil {
		return nil, err
	}

	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}

	fetchCmd := g.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var headers []model.EmailHeader
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		email := emailFromBuffer(buf)
		headers = append(headers, model.EmailHeader{
			ID:          email.ID,
			Subject:     email.Subject,
			SenderEmail: email.SenderEmail,
			SenderName:  email.SenderName,
			Date:        email.Date,
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return headers, fmt.Errorf("fetching headers: %w", err)
	}
	return headers, nil
}

// FetchByIdentifiers fetches full message content, including parsed MIME
// bodies, for the given UIDs. UIDs the server no longer knows simply
// produce no message.
func (g *IMAPGateway) FetchByIdentifiers(
	_ context.Context, ids []string,
) ([]model.IncomingEmail, error) {
	if g.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	uidSet, err := parseUIDSet(ids)
	if err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := g.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var emails []model.IncomingEmail
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		email := emailFromBuffer(buf)

		if raw := buf.FindBodySection(bodySection); raw != nil {
			textBody, htmlBody, attachmentCount := parseMIMEBody(raw)
			email.TextBody = textBody
			email.HTMLBody = htmlBody
			email.AttachmentCount = attachmentCount
			email.HasAttachments = attachmentCount > 0
		}

		emails = append(emails, email)
	}

	if err := fetchCmd.Close(); err != nil {
		return emails, fmt.Errorf("fetching messages: %w", err)
	}
	return emails, nil
}

// parseUIDSet converts string identifiers back into an IMAP UID set.
func parseUIDSet(ids []string) (imap.UIDSet, error) {
	uids := make([]imap.UID, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid message identifier %q: %w", id, err)
		}
		uids = append(uids, imap.UID(n))
	}
	return imap.UIDSetNum(uids...), nil
}

// emailFromBuffer extracts the envelope fields from a fetch buffer.
// A message without a UID gets a random identifier; it can never be
// deduplicated but is not lost.
func emailFromBuffer(buf *imapclient.FetchMessageBuffer) model.IncomingEmail {
	email := model.IncomingEmail{}

	if buf.UID != 0 {
		email.ID = strconv.FormatUint(uint64(buf.UID), 10)
	} else {
		email.ID = uuid.NewString()
	}

	if buf.Envelope != nil {
		email.Subject = buf.Envelope.Subject
		email.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			email.SenderEmail = from.Addr()
			email.SenderName = senderName(from.Name, from.Addr())
		}
	}

	return email
}

// senderName prefers the display name and falls back to the local part
// of the address.
func senderName(displayName, addr string) string {
	if displayName != "" {
		return displayName
	}
	if at := strings.Index(addr, "@"); at > 0 {
		return addr[:at]
	}
	return addr
}

// parseMIMEBody parses a raw RFC 2822 message using go-message and
// extracts the text/plain body, text/html body, and attachment count.
func parseMIMEBody(raw []byte) (textBody, htmlBody string, attachmentCount int) {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// Unparseable content is treated as one plain-text blob.
		return string(raw), "", 0
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				textBody = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				htmlBody = string(body)
			}

		case *mail.AttachmentHeader:
			attachmentCount++
		}
	}

	return textBody, htmlBody, attachmentCount
}

// ValidateConnection connects, reports the mailbox status, and
// disconnects. It is used by the setup and doctor commands.
func (g *IMAPGateway) ValidateConnection(ctx context.Context) (string, error) {
	if err := g.Connect(ctx); err != nil {
		return "", err
	}
	defer func() { _ = g.Disconnect() }()

	status, err := g.client.Status(g.folder, &imap.StatusOptions{
		NumMessages: true,
	}).Wait()
	if err != nil {
		return "", fmt.Errorf("querying %s status: %w", g.folder, err)
	}

	count := uint32(0)
	if status.NumMessages != nil {
		count = *status.NumMessages
	}
	return fmt.Sprintf(
		"connected to %s as %s (%d messages in %s)",
		g.host, g.username, count, g.folder,
	), nil
}
