package mailbox

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

func TestSenderName(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		addr        string
		want        string
	}{
		{"display name wins", "Alice Chan", "alice@example.edu", "Alice Chan"},
		{"local part fallback", "", "registry@example.edu", "registry"},
		{"malformed address", "", "not-an-address", "not-an-address"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			if got := senderName(tc.displayName, tc.addr); got != tc.want {
				t.Errorf("senderName(%q, %q) = %q, want %q",
					tc.displayName, tc.addr, got, tc.want)
			}
		})
	}
}

func TestParseUIDSet(t *testing.T) {
	set, err := parseUIDSet([]string{"1", "42", "4294967295"})
	if err != nil {
		t.Fatalf("parseUIDSet() error: %v", err)
	}
	want := imap.UIDSetNum(imap.UID(1), imap.UID(42), imap.UID(4294967295))
	if set.String() != want.String() {
		t.Errorf("parseUIDSet() = %s, want %s", set.String(), want.String())
	}

	if _, err := parseUIDSet([]string{"abc"}); err == nil {
		t.Error("parseUIDSet() accepted a non-numeric identifier")
	}
}

func TestEmailFromBuffer(t *testing.T) {
	date := time.Date(2026, time.August, 20, 9, 30, 0, 0, time.UTC)
	buf := &imapclient.FetchMessageBuffer{
		UID: imap.UID(317),
		Envelope: &imap.Envelope{
			Subject: "Tutorial rescheduled",
			Date:    date,
			From: []imap.Address{
				{Mailbox: "ta.office", Host: "example.edu"},
			},
		},
	}

	email := emailFromBuffer(buf)

	if email.ID != "317" {
		t.Errorf("ID = %q, want %q", email.ID, "317")
	}
	if email.Subject != "Tutorial rescheduled" {
		t.Errorf("Subject = %q", email.Subject)
	}
	if email.SenderEmail != "ta.office@example.edu" {
		t.Errorf("SenderEmail = %q", email.SenderEmail)
	}
	if email.SenderName != "ta.office" {
		t.Errorf("SenderName = %q", email.SenderName)
	}
	if !email.Date.Equal(date) {
		t.Errorf("Date = %v, want %v", email.Date, date)
	}
}

func TestEmailFromBufferMissingUID(t *testing.T) {
	a := emailFromBuffer(&imapclient.FetchMessageBuffer{})
	b := emailFromBuffer(&imapclient.FetchMessageBuffer{})

	if a.ID == "" || b.ID == "" {
		t.Fatal("fallback identifier is empty")
	}
	if a.ID == b.ID {
		t.Error("fallback identifiers collide")
	}
}

func TestParseMIMEBodyPlainText(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@example.edu",
		"To: b@example.edu",
		"Subject: hello",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain body here",
	}, "\r\n")

	text, html, attachments := parseMIMEBody([]byte(raw))

	if !strings.Contains(text, "plain body here") {
		t.Errorf("text body = %q", text)
	}
	if html != "" {
		t.Errorf("html body = %q, want empty", html)
	}
	if attachments != 0 {
		t.Errorf("attachments = %d, want 0", attachments)
	}
}

func TestParseMIMEBodyMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@example.edu",
		"To: b@example.edu",
		"Subject: report",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=bnd",
		"",
		"--bnd",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"see attached",
		"--bnd",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>see attached</p>",
		"--bnd",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=\"report.pdf\"",
		"",
		"%PDF-1.4",
		"--bnd--",
	}, "\r\n")

	text, html, attachments := parseMIMEBody([]byte(raw))

	if !strings.Contains(text, "see attached") {
		t.Errorf("text body = %q", text)
	}
	if !strings.Contains(html, "<p>see attached</p>") {
		t.Errorf("html body = %q", html)
	}
	if attachments != 1 {
		t.Errorf("attachments = %d, want 1", attachments)
	}
}

func TestParseMIMEBodyUnparseable(t *testing.T) {
	text, _, attachments := parseMIMEBody([]byte("\x00not a message"))
	if text != "\x00not a message" {
		t.Errorf("text body = %q, want raw passthrough", text)
	}
	if attachments != 0 {
		t.Errorf("attachments = %d, want 0", attachments)
	}
}
