package maillog

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConnectedAndDisconnected(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Connected("smtp.example.com:587")
	l.Disconnected("smtp.example.com:587")

	got := buf.String()
	if !strings.Contains(got, "addr=smtp.example.com:587 connected") {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "addr=smtp.example.com:587 disconnected") {
		t.Errorf("got %q", got)
	}
}

func TestSendAttemptSuccessAndFailure(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SendAttempt("a@x.io", "b@y.io", "hi", nil)
	l.SendAttempt("a@x.io", "c@y.io", "hi2", errors.New("boom"))

	got := buf.String()
	if !strings.Contains(got, `from=a@x.io to=b@y.io subject="hi" sent`) {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, `from=a@x.io to=c@y.io subject="hi2" failed err="boom"`) {
		t.Errorf("got %q", got)
	}
}
