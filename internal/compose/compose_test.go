package compose

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/submitq/smtpsubmit/internal/mail"
)

func TestDotStuffLeadingDot(t *testing.T) {
	in := "hello\r\n.world\r\nplain\r\n..already\r\n"
	want := "hello\r\n..world\r\nplain\r\n...already\r\n"
	if got := DotStuff(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDotStuffDoesNotDoubleNonDotLines(t *testing.T) {
	in := "no dots here\r\nor here\r\n"
	if got := DotStuff(in); got != in {
		t.Errorf("got %q, want unchanged %q", got, in)
	}
}

func TestDotStuffSoleDotLine(t *testing.T) {
	// A line that is just "." must become "..", matching the
	// substring-replace behavior for this one case (the legacy bug and
	// the correct stuffer agree only here).
	in := ".\r\n"
	want := "..\r\n"
	if got := DotStuff(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMinimalSerializerHeaderBlock(t *testing.T) {
	m := mail.Mail{
		Subject: "hi",
		From:    "a@x.io",
		To:      "b@y.io",
		Text:    "body\r\n",
	}
	got, err := MinimalSerializer{}.Serialize(m)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	s := string(got)
	if !strings.HasPrefix(s, "From: a@x.io\r\nTo: b@y.io\r\nSubject: hi\r\n\r\n") {
		t.Errorf("unexpected header block: %q", s)
	}
	if !strings.HasSuffix(s, "body\r\n.\r\n") {
		t.Errorf("unexpected terminator: %q", s)
	}
}

func TestMinimalSerializerDisplayNames(t *testing.T) {
	m := mail.Mail{
		Subject:  "hi",
		From:     "a@x.io",
		FromName: "Alice",
		To:       "b@y.io",
		ToName:   "Bob",
		Text:     "hey\r\n",
	}
	got, err := MinimalSerializer{}.Serialize(m)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !bytes.Contains(got, []byte("<a@x.io>")) || !bytes.Contains(got, []byte("<b@y.io>")) {
		t.Errorf("expected bracketed addresses with display names: %q", got)
	}
}

func TestMIMESerializerNoAttachments(t *testing.T) {
	m := mail.Mail{Subject: "s", From: "a@x.io", To: "b@y.io", Text: "plain body\r\n"}
	got, err := MIMESerializer{}.Serialize(m)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	s := string(got)
	if !strings.Contains(s, "Content-Type: text/plain") {
		t.Errorf("expected plain text content type: %q", s)
	}
	if !strings.HasSuffix(s, "\r\n.\r\n") {
		t.Errorf("missing terminator: %q", s)
	}
}

func TestMIMESerializerWithAttachment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("attached content"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	m := mail.Mail{
		Subject:     "s",
		From:        "a@x.io",
		To:          "b@y.io",
		Text:        "see attached\r\n",
		Attachments: []string{path},
	}
	got, err := MIMESerializer{}.Serialize(m)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	s := string(got)
	if !strings.Contains(s, "multipart/mixed") {
		t.Errorf("expected multipart/mixed content type: %q", s)
	}
	if !strings.Contains(s, `filename="note.txt"`) {
		t.Errorf("expected attachment filename header: %q", s)
	}
}

func TestMIMESerializerMissingAttachment(t *testing.T) {
	m := mail.Mail{
		Subject:     "s",
		From:        "a@x.io",
		To:          "b@y.io",
		Text:        "body\r\n",
		Attachments: []string{"/no/such/file"},
	}
	if _, err := (MIMESerializer{}).Serialize(m); err == nil {
		t.Errorf("expected error for missing attachment file")
	}
}
