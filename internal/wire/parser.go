package wire

import (
	"io"

	"github.com/submitq/smtpsubmit/internal/smtperr"
)

func protocolError() error {
	return smtperr.New(smtperr.Protocol)
}

func networkError() error {
	return smtperr.New(smtperr.Network)
}

// Parser decodes multi-line SMTP replies from a byte stream, one byte
// at a time, with a single byte of lookahead.
//
// recvChar always performs exactly one underlying read and returns
// whatever was read by the *previous* call, storing the new byte as
// the lookahead for the next one. The very first call of the parser's
// lifetime therefore returns a meaningless zero byte; RecvLine always
// opens with one such throwaway call, which is what actually pulls a
// line's first character into the lookahead. Implementations with a
// buffered reader MUST NOT read ahead any further than this one byte,
// or pipelined replies read back-to-back will desynchronize.
type Parser struct {
	r    io.Reader
	next byte
}

// NewParser wraps r. Nothing is read until the first ReplyLine is
// requested.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

func (p *Parser) recvChar() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(p.r, buf[:]); err != nil {
		return 0, networkError()
	}
	c := p.next
	p.next = buf[0]
	return c, nil
}

func (p *Parser) peekChar() byte {
	return p.next
}

func (p *Parser) recvDigit() (int, error) {
	c, err := p.recvChar()
	if err != nil {
		return 0, err
	}
	if c < '0' || c > '9' {
		return 0, protocolError()
	}
	return int(c - '0'), nil
}

func (p *Parser) expectEnd() error {
	c, err := p.recvChar()
	if err != nil {
		return err
	}
	if c != '\r' {
		return protocolError()
	}
	if p.peekChar() != '\n' {
		return protocolError()
	}
	return nil
}

func (p *Parser) recvText() (string, error) {
	var text []byte
	for {
		c, err := p.recvChar()
		if err != nil {
			return "", err
		}
		if c == '\r' && p.peekChar() == '\n' {
			return string(text), nil
		}
		text = append(text, c)
	}
}

// RecvLine reads a single reply line: a 3-digit status code, a
// separator (space, hyphen, or immediately CRLF), optional text, and
// the terminating CRLF.
func (p *Parser) RecvLine() (ReplyLine, error) {
	// Throwaway read: see the Parser docs above.
	if _, err := p.recvChar(); err != nil {
		return ReplyLine{}, err
	}

	d1, err := p.recvDigit()
	if err != nil {
		return ReplyLine{}, err
	}
	d2, err := p.recvDigit()
	if err != nil {
		return ReplyLine{}, err
	}
	d3, err := p.recvDigit()
	if err != nil {
		return ReplyLine{}, err
	}
	code := d1*100 + d2*10 + d3

	next := p.peekChar()
	var text string
	if next == ' ' || next == '-' {
		if _, err := p.recvChar(); err != nil {
			return ReplyLine{}, err
		}
		text, err = p.recvText()
		if err != nil {
			return ReplyLine{}, err
		}
	} else {
		if err := p.expectEnd(); err != nil {
			return ReplyLine{}, err
		}
	}

	if !isKnown(code) {
		return ReplyLine{}, protocolError()
	}

	return ReplyLine{
		Code:   StatusCode(code),
		Text:   text,
		IsLast: next != '-',
	}, nil
}

// RecvReply reads lines until one with IsLast set, and returns the
// accumulated sequence. It does not check that every line shares the
// same status code (the upstream parser does not, and we preserve
// that).
func (p *Parser) RecvReply() (Reply, error) {
	var lines Reply
	for {
		line, err := p.RecvLine()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
		if line.IsLast {
			return lines, nil
		}
	}
}
