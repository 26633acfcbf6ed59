package wire

import (
	"strings"
	"testing"

	"github.com/submitq/smtpsubmit/internal/smtperr"
)

func TestRecvLineSingle(t *testing.T) {
	p := NewParser(strings.NewReader("250 OK\r\n"))
	line, err := p.RecvLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Code != Okay || line.Text != "OK" || !line.IsLast {
		t.Errorf("got %+v", line)
	}
}

func TestRecvLineEmptyText(t *testing.T) {
	p := NewParser(strings.NewReader("220\r\n"))
	line, err := p.RecvLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Code != ServiceReady || line.Text != "" || !line.IsLast {
		t.Errorf("got %+v", line)
	}
}

func TestRecvLineContinuation(t *testing.T) {
	p := NewParser(strings.NewReader("250-hi there\r\n"))
	line, err := p.RecvLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Code != Okay || line.Text != "hi there" || line.IsLast {
		t.Errorf("got %+v", line)
	}
}

func TestRecvReplyMultiLine(t *testing.T) {
	p := NewParser(strings.NewReader("250-first\r\n250-second\r\n250 third\r\n"))
	reply, err := p.RecvReply()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reply) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(reply))
	}
	for i, want := range []string{"first", "second", "third"} {
		if reply[i].Text != want {
			t.Errorf("line %d: got %q, want %q", i, reply[i].Text, want)
		}
	}
	if reply[0].IsLast || reply[1].IsLast || !reply[2].IsLast {
		t.Errorf("IsLast flags wrong: %+v", reply)
	}
}

func TestRecvReplyExactlyOneLastLine(t *testing.T) {
	p := NewParser(strings.NewReader("250-a\r\n250-b\r\n250 c\r\n"))
	reply, err := p.RecvReply()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, l := range reply {
		if l.IsLast != (i == len(reply)-1) {
			t.Errorf("line %d: IsLast=%v, want %v", i, l.IsLast, i == len(reply)-1)
		}
	}
}

func TestRecvLineUnknownCode(t *testing.T) {
	p := NewParser(strings.NewReader("999 nope\r\n"))
	_, err := p.RecvLine()
	if e, ok := err.(*smtperr.Err); !ok || e.Kind != smtperr.Protocol {
		t.Errorf("expected Protocol error, got %v", err)
	}
}

func TestRecvLineNonDigit(t *testing.T) {
	p := NewParser(strings.NewReader("abc ok\r\n"))
	_, err := p.RecvLine()
	if e, ok := err.(*smtperr.Err); !ok || e.Kind != smtperr.Protocol {
		t.Errorf("expected Protocol error, got %v", err)
	}
}

func TestRecvLineTruncatedStream(t *testing.T) {
	p := NewParser(strings.NewReader("250"))
	_, err := p.RecvLine()
	if e, ok := err.(*smtperr.Err); !ok || e.Kind != smtperr.Network {
		t.Errorf("expected Network error, got %v", err)
	}
}

func TestSequentialLinesDoNotDesync(t *testing.T) {
	// Back-to-back replies (as in a pipelined exchange) must not leak
	// lookahead bytes between RecvLine calls.
	p := NewParser(strings.NewReader("250 first\r\n250 second\r\n"))
	first, err := p.RecvLine()
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := p.RecvLine()
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Text != "first" || second.Text != "second" {
		t.Errorf("got %q, %q", first.Text, second.Text)
	}
}
