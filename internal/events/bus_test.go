package events

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"blitiri.com.ar/go/log"

	"github.com/submitq/smtpsubmit/internal/smtperr"
)

func newTestBus(t *testing.T) (*Bus, string, *bytes.Buffer) {
	f, err := os.CreateTemp("", "events_test-")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	l, err := log.NewFile(f.Name())
	if err != nil {
		t.Fatalf("log.NewFile: %v", err)
	}
	var wire bytes.Buffer
	return NewBus(l, &wire), f.Name(), &wire
}

func readAll(t *testing.T, path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestEmitMailSent(t *testing.T) {
	bus, path, _ := newTestBus(t)
	bus.Emit(NewMailSent("hi", "b@y.io"))
	got := readAll(t, path)
	if !strings.Contains(got, "sent [hi] to <b@y.io>") {
		t.Errorf("got %q", got)
	}
}

func TestEmitFailedToConnect(t *testing.T) {
	bus, path, _ := newTestBus(t)
	bus.Emit(NewFailedToConnect(smtperr.New(smtperr.ServerUnreachable)))
	got := readAll(t, path)
	if !strings.Contains(got, "can't reach the server") {
		t.Errorf("got %q", got)
	}
}

func TestDisableSuppressesEmit(t *testing.T) {
	bus, path, _ := newTestBus(t)
	bus.Disable()
	bus.Emit(NewConnected())
	got := readAll(t, path)
	if got != "" {
		t.Errorf("expected no output while disabled, got %q", got)
	}

	bus.Enable()
	bus.Emit(NewConnected())
	got = readAll(t, path)
	if !strings.Contains(got, "connected to server") {
		t.Errorf("got %q", got)
	}
}

func TestWireBytesDirectionPrefix(t *testing.T) {
	bus, _, wire := newTestBus(t)
	bus.ClientBytes([]byte("EHLO me\r\n"))
	bus.ClientBytes([]byte("MAIL FROM:<a@x.io>\r\n"))
	bus.ServerBytes([]byte("250 OK\r\n"))
	bus.ServerBytes([]byte("250 OK\r\n"))
	bus.ClientBytes([]byte("QUIT\r\n"))

	want := "C: EHLO me\r\nMAIL FROM:<a@x.io>\r\nS: 250 OK\r\n250 OK\r\nC: QUIT\r\n"
	if wire.String() != want {
		t.Errorf("got %q, want %q", wire.String(), want)
	}
}

func TestWireBytesNilSinkDoesNotPanic(t *testing.T) {
	l, err := log.NewFile(os.DevNull)
	if err != nil {
		t.Fatalf("log.NewFile: %v", err)
	}
	bus := NewBus(l, nil)
	bus.ClientBytes([]byte("EHLO me\r\n"))
}
