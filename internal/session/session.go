// Package session implements the Session Engine: one TCP+TLS connection
// driving a single SMTP conversation end to end (connect, handshake,
// optional STARTTLS, authenticate, send zero or more mails, quit), plus the
// Retry Wrapper gating each public operation.
package session

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/submitq/smtpsubmit/internal/compose"
	"github.com/submitq/smtpsubmit/internal/events"
	"github.com/submitq/smtpsubmit/internal/mail"
	"github.com/submitq/smtpsubmit/internal/smtperr"
	"github.com/submitq/smtpsubmit/internal/transport"
	"github.com/submitq/smtpsubmit/internal/wire"
)

// State is the Session's place in its lifecycle.
type State int

const (
	Fresh State = iota
	Connected
	Greeted
	Authenticated
	Closed
)

// Config controls how a Session behaves: timeouts, retry budget, and
// feature toggles that are otherwise capability-driven.
type Config struct {
	// ClientName is sent as the EHLO argument. Defaults to "me".
	ClientName string
	// Timeout applies to dialing and to every subsequent read/write.
	Timeout time.Duration
	// Retries is the retry budget consumed by the Retry Wrapper.
	Retries int
	// Pipeline opts into pipelined MAIL/RCPT/DATA when the server also
	// advertises PIPELINING. If false, the serial mode is always used.
	Pipeline bool
	// AutoQuit, if true, makes CloseIfAutoQuit attempt a best-effort
	// Close and discard its result.
	AutoQuit bool
}

func (c Config) clientName() string {
	if c.ClientName == "" {
		return "me"
	}
	return c.ClientName
}

// Session drives one SMTP conversation over one transport.Conn.
type Session struct {
	cfg   Config
	addr  string
	host  string // used as the STARTTLS server name
	state State
	caps  Capabilities
	conn  *transport.Conn
	bus   *events.Bus
	ser   compose.Serializer
}

// New returns a Session that will dial addr (host:port) when Connect is
// called. host is the bare hostname, used for TLS server-name verification
// independent of how addr resolves.
func New(addr, host string, cfg Config, bus *events.Bus) *Session {
	return &Session{
		cfg:  cfg,
		addr: addr,
		host: host,
		bus:  bus,
		ser:  compose.MIMESerializer{},
	}
}

// State reports the Session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Caps reports the last-discovered capability set.
func (s *Session) Caps() Capabilities { return s.caps }

// TLSState reports the negotiated TLS connection state, if the session
// has upgraded via STARTTLS.
func (s *Session) TLSState() (tls.ConnectionState, bool) {
	if s.conn == nil {
		return tls.ConnectionState{}, false
	}
	return s.conn.TLSState()
}

// Discover performs dial, handshake, and (if advertised) a STARTTLS
// upgrade and re-handshake, without authenticating or sending any mail.
// It is the connectivity-preflight path used by cmd/smtpsubmit-check to
// report what a server negotiates before committing credentials to it.
func (s *Session) Discover() error {
	if err := s.dial(); err != nil {
		return err
	}
	if err := s.handshake(); err != nil {
		return err
	}
	if s.caps.StartTLS == Supported {
		if err := s.startTLS(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) emit(e events.Event) {
	if s.bus != nil {
		s.bus.Emit(e)
	}
}

func (s *Session) write(b []byte) error {
	if s.bus != nil {
		s.bus.ClientBytes(b)
	}
	return s.conn.Write(b)
}

// recvLineRaw reads one reply line with no global-code filtering beyond
// the parser itself. It is the shared read underneath recvLine and
// recvStageLine, which add their own 421/554 handling.
func (s *Session) recvLineRaw() (wire.ReplyLine, error) {
	p := wire.NewParser(loggingReader{r: s.conn.Reader(), bus: s.bus})
	return p.RecvLine()
}

// recvLine reads one reply line, applying the global termination rule: a
// 421 on any line, or a 554 arriving somewhere other than the expected
// final reply of a mail-transaction stage (those classify 554 for
// themselves via recvStageLine), forces a terminate and surfaces as
// ServerUnavailable.
func (s *Session) recvLine() (wire.ReplyLine, error) {
	line, err := s.recvLineRaw()
	if err != nil {
		return line, err
	}
	if line.Code == wire.ServiceNotAvailable || line.Code == wire.TransactionFailed {
		s.terminate()
		return line, smtperr.New(smtperr.ServerUnavailable)
	}
	return line, nil
}

// recvStageLine reads one reply line for a mail-transaction stage
// (MAIL/RCPT/DATA/payload-final). Only 421 forces an immediate terminate
// here; 554 is left for the stage's own classifier, which treats it like
// any other reply code it doesn't recognize (Protocol), per the decision
// that 554 is ambiguous between "unsolicited shutdown" and "this
// transaction failed" and the latter is what a stage-final 554 means.
func (s *Session) recvStageLine() (wire.ReplyLine, error) {
	line, err := s.recvLineRaw()
	if err != nil {
		return line, err
	}
	if line.Code == wire.ServiceNotAvailable {
		s.terminate()
		return line, smtperr.New(smtperr.ServerUnavailable)
	}
	return line, nil
}

func (s *Session) recvReply() (wire.Reply, error) {
	p := wire.NewParser(loggingReader{r: s.conn.Reader(), bus: s.bus})
	reply, err := p.RecvReply()
	if err != nil {
		return reply, err
	}
	for _, l := range reply {
		if l.Code == wire.ServiceNotAvailable || l.Code == wire.TransactionFailed {
			s.terminate()
			return reply, smtperr.New(smtperr.ServerUnavailable)
		}
	}
	return reply, nil
}

// terminate shuts down the transport and resets the Session to a state
// from which no further operation but a fresh Connect makes sense.
func (s *Session) terminate() {
	if s.conn != nil {
		s.conn.Shutdown()
	}
	s.caps = Capabilities{}
	s.state = Closed
}

func (s *Session) send(cmd wire.Command) error {
	return s.write(cmd.Render())
}

func (s *Session) dial() error {
	conn, err := transport.Dial(s.addr, s.cfg.Timeout)
	if err != nil {
		return err
	}
	s.conn = conn
	if err := s.conn.SetTimeouts(s.cfg.Timeout); err != nil {
		return err
	}
	line, err := s.recvLine()
	if err != nil {
		return smtperr.New(smtperr.InvalidServer)
	}
	if line.Code != wire.ServiceReady {
		return smtperr.New(smtperr.Protocol)
	}
	s.state = Connected
	return nil
}

// handshake sends EHLO and updates caps from the reply, per spec.md §4.4.
func (s *Session) handshake() error {
	s.caps.reset(s.conn.IsTLS())

	if err := s.send(wire.Ehlo(s.cfg.clientName())); err != nil {
		return err
	}
	reply, err := s.recvReply()
	if err != nil {
		return err
	}

	for i, l := range reply {
		if l.Code != wire.Okay {
			return smtperr.New(smtperr.Protocol)
		}
		if i == 0 {
			continue // greeting line, not a capability
		}
		text := strings.ToUpper(l.Text)
		switch text {
		case "STARTTLS":
			s.caps.StartTLS = Supported
			continue
		case "8BITMIME":
			s.caps.EightBit = Supported
			continue
		case "PIPELINING":
			s.caps.Pipelining = Supported
			continue
		}
		words := strings.Fields(text)
		if len(words) >= 1 && words[0] == "AUTH" {
			for _, w := range words[1:] {
				switch w {
				case "PLAIN":
					s.caps.AuthPlain = Supported
				case "LOGIN":
					s.caps.AuthLogin = Supported
				}
			}
		}
	}
	s.state = Greeted
	return nil
}

func (s *Session) startTLS() error {
	if err := s.send(wire.StartTLS()); err != nil {
		return err
	}
	line, err := s.recvLine()
	if err != nil {
		return err
	}
	if line.Code != wire.ServiceReady {
		return smtperr.New(smtperr.Protocol)
	}
	if err := s.conn.UpgradeTLS(s.host); err != nil {
		return err
	}
	return s.handshake()
}

func (s *Session) replyAuthResult() error {
	line, err := s.recvLine()
	if err != nil {
		return err
	}
	switch line.Code {
	case wire.AuthSuccess:
		return nil
	case wire.AuthInvalidCred, wire.NoAccess:
		return smtperr.New(smtperr.InvalidCred)
	default:
		return smtperr.New(smtperr.Protocol)
	}
}

func (s *Session) authPlain(cred mail.Credentials) error {
	if err := s.send(wire.AuthPlain(cred.Username, cred.Password)); err != nil {
		return err
	}
	return s.replyAuthResult()
}

func (s *Session) authLogin(cred mail.Credentials) error {
	if err := s.send(wire.AuthLogin()); err != nil {
		return err
	}
	if line, err := s.recvLine(); err != nil {
		return err
	} else if line.Code != wire.ServerChallenge {
		return smtperr.New(smtperr.Protocol)
	}
	if err := s.write(wire.B64Token(cred.Username)); err != nil {
		return err
	}
	if line, err := s.recvLine(); err != nil {
		return err
	} else if line.Code != wire.ServerChallenge {
		return smtperr.New(smtperr.Protocol)
	}
	if err := s.write(wire.B64Token(cred.Password)); err != nil {
		return err
	}
	return s.replyAuthResult()
}

// tryConnect is the un-retried connect sequence: dial, handshake, optional
// STARTTLS-then-rehandshake, then authenticate with whichever mechanism is
// preferred (PLAIN over LOGIN).
func (s *Session) tryConnect(cred mail.Credentials) error {
	if err := s.dial(); err != nil {
		return err
	}
	if err := s.handshake(); err != nil {
		return err
	}
	if s.caps.StartTLS == Supported {
		if err := s.startTLS(); err != nil {
			return err
		}
	}
	switch {
	case s.caps.AuthPlain == Supported:
		if err := s.authPlain(cred); err != nil {
			return err
		}
	case s.caps.AuthLogin == Supported:
		if err := s.authLogin(cred); err != nil {
			return err
		}
	}
	s.state = Authenticated
	return nil
}

func (s *Session) tryClose() error {
	if err := s.send(wire.Quit()); err != nil {
		return err
	}
	line, err := s.recvLine()
	if err != nil {
		return err
	}
	if line.Code != wire.ServiceClosing {
		return smtperr.New(smtperr.Protocol)
	}
	s.terminate()
	return nil
}

func replyMailFrom(from string, code wire.StatusCode) error {
	switch code {
	case wire.Okay:
		return nil
	case wire.NoAccess:
		return smtperr.New(smtperr.Policy)
	case wire.MailBoxNameNotAllowed:
		return smtperr.Newf(smtperr.MailBoxName, from)
	default:
		return smtperr.New(smtperr.Protocol)
	}
}

func replyRcptTo(to string, line wire.ReplyLine) error {
	switch line.Code {
	case wire.Okay, wire.UserNotLocal:
		return nil
	case wire.NoAccess, wire.MailboxUnavailable:
		return smtperr.New(smtperr.Policy)
	case wire.MailBoxNameNotAllowed:
		return smtperr.Newf(smtperr.MailBoxName, to)
	case wire.UserNotLocalError:
		return smtperr.Newf(smtperr.Forward, line.Text)
	default:
		return smtperr.New(smtperr.Protocol)
	}
}

func replyData(code wire.StatusCode) error {
	if code != wire.StartMailInput {
		return smtperr.New(smtperr.Protocol)
	}
	return nil
}

func replyPayload(code wire.StatusCode) error {
	switch code {
	case wire.Okay:
		return nil
	case wire.NoAccess, wire.MailboxUnavailable:
		return smtperr.New(smtperr.Policy)
	default:
		return smtperr.New(smtperr.Protocol)
	}
}

func (s *Session) payload(m mail.Mail) ([]byte, error) {
	if s.caps.EightBit == Supported {
		return s.ser.Serialize(m)
	}
	return compose.MinimalSerializer{}.Serialize(m)
}

// trySendMail is the un-retried mail transaction: validate, choose
// pipelined or serial framing per capability+config, write, and classify
// every reply.
func (s *Session) trySendMail(m mail.Mail) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.HasAttachments() && s.caps.EightBit != Supported {
		return smtperr.New(smtperr.MIMENotSupported)
	}

	payload, err := s.payload(m)
	if err != nil {
		return err
	}

	pipelined := s.cfg.Pipeline && s.caps.Pipelining == Supported
	if pipelined {
		if err := s.send(wire.MailFrom(m.From)); err != nil {
			return err
		}
		if err := s.send(wire.RcptTo(m.To)); err != nil {
			return err
		}
		if err := s.send(wire.Data()); err != nil {
			return err
		}
		fromLine, err := s.recvStageLine()
		if err != nil {
			return err
		}
		if err := replyMailFrom(m.From, fromLine.Code); err != nil {
			return err
		}
		rcptLine, err := s.recvStageLine()
		if err != nil {
			return err
		}
		if err := replyRcptTo(m.To, rcptLine); err != nil {
			return err
		}
		dataLine, err := s.recvStageLine()
		if err != nil {
			return err
		}
		if err := replyData(dataLine.Code); err != nil {
			return err
		}
	} else {
		if err := s.send(wire.MailFrom(m.From)); err != nil {
			return err
		}
		fromLine, err := s.recvStageLine()
		if err != nil {
			return err
		}
		if err := replyMailFrom(m.From, fromLine.Code); err != nil {
			return err
		}
		if err := s.send(wire.RcptTo(m.To)); err != nil {
			return err
		}
		rcptLine, err := s.recvStageLine()
		if err != nil {
			return err
		}
		if err := replyRcptTo(m.To, rcptLine); err != nil {
			return err
		}
		if err := s.send(wire.Data()); err != nil {
			return err
		}
		dataLine, err := s.recvStageLine()
		if err != nil {
			return err
		}
		if err := replyData(dataLine.Code); err != nil {
			return err
		}
	}

	if err := s.write(payload); err != nil {
		return err
	}
	finalLine, err := s.recvStageLine()
	if err != nil {
		return err
	}
	return replyPayload(finalLine.Code)
}

// loggingReader wraps a byte source so every byte read by the wire parser
// is also reported to the event bus as server_bytes, matching the
// original's recv_char logging each byte as it arrives.
type loggingReader struct {
	r   interface{ ReadByte() (byte, error) }
	bus *events.Bus
}

func (l loggingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := l.r.ReadByte()
	if err != nil {
		return 0, err
	}
	p[0] = b
	if l.bus != nil {
		l.bus.ServerBytes(p[0:1])
	}
	return 1, nil
}
