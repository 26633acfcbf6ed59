package wire

import "encoding/base64"

// Command is a tagged variant of the outbound SMTP commands this
// client issues.
type Command struct {
	kind kind
	a, b string
}

type kind int

const (
	kindEhlo kind = iota
	kindStartTLS
	kindAuthPlain
	kindAuthLogin
	kindMailFrom
	kindRcptTo
	kindData
	kindQuit
)

func Ehlo(clientName string) Command       { return Command{kind: kindEhlo, a: clientName} }
func StartTLS() Command                    { return Command{kind: kindStartTLS} }
func AuthPlain(username, password string) Command {
	return Command{kind: kindAuthPlain, a: username, b: password}
}
func AuthLogin() Command           { return Command{kind: kindAuthLogin} }
func MailFrom(addr string) Command { return Command{kind: kindMailFrom, a: addr} }
func RcptTo(addr string) Command   { return Command{kind: kindRcptTo, a: addr} }
func Data() Command                { return Command{kind: kindData} }
func Quit() Command                { return Command{kind: kindQuit} }

// Render renders the command to its canonical CRLF-terminated wire
// form.
func (c Command) Render() []byte {
	var s string
	switch c.kind {
	case kindEhlo:
		s = "EHLO " + c.a
	case kindStartTLS:
		s = "STARTTLS"
	case kindAuthPlain:
		s = "AUTH PLAIN " + authPlainPayload(c.a, c.b)
	case kindAuthLogin:
		s = "AUTH LOGIN"
	case kindMailFrom:
		s = "MAIL FROM:<" + c.a + ">"
	case kindRcptTo:
		s = "RCPT TO:<" + c.a + ">"
	case kindData:
		s = "DATA"
	case kindQuit:
		s = "QUIT"
	}
	return []byte(s + "\r\n")
}

// authPlainPayload builds the base64 payload for AUTH PLAIN: NUL
// username NUL password.
func authPlainPayload(username, password string) string {
	raw := make([]byte, 0, len(username)+len(password)+2)
	raw = append(raw, 0)
	raw = append(raw, username...)
	raw = append(raw, 0)
	raw = append(raw, password...)
	return base64.StdEncoding.EncodeToString(raw)
}

// B64Token base64-encodes a single AUTH LOGIN challenge response
// (username or password).
func B64Token(token string) []byte {
	return []byte(base64.StdEncoding.EncodeToString([]byte(token)) + "\r\n")
}
