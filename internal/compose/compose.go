// Package compose builds the DATA payload bytes for a mail.Mail: either a
// full MIME message (when the server advertises 8BITMIME) or a minimal
// synthesized header block, dot-stuffed and CRLF-terminated per RFC 5321
// §4.5.2, ready to hand straight to the wire after the "DATA" / 354
// exchange.
package compose

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/submitq/smtpsubmit/internal/mail"
	"github.com/submitq/smtpsubmit/internal/smtperr"
)

// Serializer turns a Mail into DATA payload bytes, already dot-stuffed and
// terminated with the CRLF.CRLF end marker. Implementations never see or
// manage the surrounding MAIL/RCPT/DATA command exchange; they only build
// the body the Session Engine writes after the 354 reply.
type Serializer interface {
	Serialize(m mail.Mail) ([]byte, error)
}

// MIMESerializer produces a full multipart/mixed message when m carries
// attachments, or a simple Content-Type: text/plain message otherwise. Used
// when the server advertises 8BITMIME, matching the original's
// attachment-capable builder.
type MIMESerializer struct{}

// MinimalSerializer synthesizes the plain header block spec.md calls for
// when 8BITMIME is not advertised: From/To/Subject, a blank line, then the
// text body. It never carries attachments (the Session Engine rejects a
// mail with attachments before a MinimalSerializer is ever reached).
type MinimalSerializer struct{}

func addrHeader(name, addr string) string {
	if name == "" {
		return addr
	}
	return mime.QEncoding.Encode("utf-8", name) + " <" + addr + ">"
}

// Serialize implements Serializer.
func (MinimalSerializer) Serialize(m mail.Mail) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", addrHeader(m.FromName, m.From))
	fmt.Fprintf(&buf, "To: %s\r\n", addrHeader(m.ToName, m.To))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	buf.WriteString("\r\n")
	buf.WriteString(DotStuff(m.Text))
	return terminate(buf.Bytes()), nil
}

// Serialize implements Serializer.
func (MIMESerializer) Serialize(m mail.Mail) ([]byte, error) {
	if !m.HasAttachments() {
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "From: %s\r\n", addrHeader(m.FromName, m.From))
		fmt.Fprintf(&buf, "To: %s\r\n", addrHeader(m.ToName, m.To))
		fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
		buf.WriteString("MIME-Version: 1.0\r\n")
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(DotStuff(m.Text))
		return terminate(buf.Bytes()), nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	textHdr := textproto.MIMEHeader{}
	textHdr.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := w.CreatePart(textHdr)
	if err != nil {
		return nil, smtperr.New(smtperr.File)
	}
	part.Write([]byte(m.Text))

	for _, att := range m.Attachments {
		content, err := os.ReadFile(att)
		if err != nil {
			return nil, smtperr.Newf(smtperr.File, att)
		}
		ctype := mime.TypeByExtension(filepath.Ext(att))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		attHdr := textproto.MIMEHeader{}
		attHdr.Set("Content-Type", ctype)
		attHdr.Set("Content-Transfer-Encoding", "base64")
		attHdr.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(att)))
		apart, err := w.CreatePart(attHdr)
		if err != nil {
			return nil, smtperr.New(smtperr.File)
		}
		encodeBase64Lines(apart, content)
	}

	if err := w.Close(); err != nil {
		return nil, smtperr.New(smtperr.File)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", addrHeader(m.FromName, m.From))
	fmt.Fprintf(&buf, "To: %s\r\n", addrHeader(m.ToName, m.To))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", w.Boundary())
	buf.WriteString("\r\n")
	buf.WriteString(DotStuff(body.String()))
	return terminate(buf.Bytes()), nil
}

// DotStuff returns s with an extra leading "." inserted on every line that
// begins with one, per RFC 5321 §4.5.2. Unlike the legacy
// ".\r\n" -> "..\r\n" substring replacement (which only catches a dot that
// is also a blank line), this stuffs every qualifying line regardless of
// what follows the dot.
func DotStuff(s string) string {
	var buf bytes.Buffer
	lines := splitLinesKeepEnds(s)
	for _, line := range lines {
		if len(line) > 0 && line[0] == '.' {
			buf.WriteByte('.')
		}
		buf.WriteString(line)
	}
	return buf.String()
}

// splitLinesKeepEnds splits s into lines terminated by "\r\n", "\n", or the
// final unterminated fragment, keeping each terminator attached to its line
// so DotStuff can prepend a byte without losing the original framing.
func splitLinesKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// terminate appends the CRLF.CRLF end-of-data marker, inserting a leading
// CRLF first if body does not already end in one.
func terminate(body []byte) []byte {
	if len(body) < 2 || body[len(body)-2] != '\r' || body[len(body)-1] != '\n' {
		body = append(body, '\r', '\n')
	}
	return append(body, '.', '\r', '\n')
}

// encodeBase64Lines writes content as standard base64, wrapped at 76
// columns with CRLF, the way MIME attachments are conventionally encoded.
func encodeBase64Lines(w bytesWriter, content []byte) {
	enc := base64.StdEncoding.EncodeToString(content)
	for i := 0; i < len(enc); i += 76 {
		end := i + 76
		if end > len(enc) {
			end = len(enc)
		}
		w.Write([]byte(enc[i:end]))
		w.Write([]byte("\r\n"))
	}
}

type bytesWriter interface {
	Write([]byte) (int, error)
}
