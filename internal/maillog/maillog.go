// Package maillog implements a structured, machine-readable log of
// per-mail and per-connection events, one line per event, distinct from
// the free-text rendering blitiri.com.ar/go/log and internal/events produce.
// Grounded on chasquid's own internal/maillog, adapted from a server's
// inbound accept/queue/deliver events to a submission client's
// connect/send/disconnect events.
package maillog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"blitiri.com.ar/go/log"
)

// A writer that prepends timing information.
type timedWriter struct {
	w io.Writer
}

func (t timedWriter) Write(b []byte) (int, error) {
	fmt.Fprintf(t.w, "%s  ", time.Now().Format("2006-01-02 15:04:05.000000"))
	return t.w.Write(b)
}

// Logger writes one structured line per event to a backend writer (a
// file, typically).
type Logger struct {
	w    io.Writer
	once sync.Once
}

// New creates a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{w: timedWriter{w}}
}

func (l *Logger) printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(l.w, format, args...); err != nil {
		l.once.Do(func() {
			log.Errorf("failed to write to maillog: %v", err)
			log.Errorf("(will not report this again)")
		})
	}
}

// Connected logs a successful connect to addr.
func (l *Logger) Connected(addr string) {
	l.printf("addr=%s connected\n", addr)
}

// FailedToConnect logs a failed connect attempt.
func (l *Logger) FailedToConnect(addr string, err error) {
	l.printf("addr=%s connect-failed err=%q\n", addr, err)
}

// Disconnected logs a session teardown.
func (l *Logger) Disconnected(addr string) {
	l.printf("addr=%s disconnected\n", addr)
}

// SendAttempt logs the outcome of one mail submission.
func (l *Logger) SendAttempt(from, to, subject string, err error) {
	if err == nil {
		l.printf("from=%s to=%s subject=%q sent\n", from, to, subject)
	} else {
		l.printf("from=%s to=%s subject=%q failed err=%q\n", from, to, subject, err)
	}
}
