// Package trace extends golang.org/x/net/trace with the leveled logger
// from blitiri.com.ar/go/log, so every traced event is both visible at
// /debug/requests (when the optional monitoring listener is enabled)
// and recorded in the ordinary log stream.
package trace

import (
	"fmt"
	"net/http"
	"strconv"

	"blitiri.com.ar/go/log"
	nettrace "golang.org/x/net/trace"
)

func init() {
	// golang.org/x/net/trace restricts /debug/requests to localhost by
	// default; a submission driver run under a process manager is often
	// inspected from elsewhere on the host network.
	nettrace.AuthRequest = func(req *http.Request) (any, sensitive bool) {
		return true, true
	}
}

// A Trace represents one Session's lifecycle: one Trace per worker,
// family "session", title the dial address it is submitting to.
type Trace struct {
	family string
	title  string
	t      nettrace.Trace
}

// New starts a Trace for the given family/title (by convention,
// family="session", title=the server address).
func New(family, title string) *Trace {
	t := &Trace{family, title, nettrace.New(family, title)}

	// A full connect + N-mail transaction can easily produce more than
	// the default 10-event cap; 30 comfortably covers a typical batch.
	t.t.SetMaxEvents(30)
	return t
}

// Printf adds this message to the trace's log, and to the ambient logger
// at Info level.
func (t *Trace) Printf(format string, a ...interface{}) {
	t.t.LazyPrintf(format, a...)
	log.Log(log.Info, 1, "%s %s: %s", t.family, t.title,
		quote(fmt.Sprintf(format, a...)))
}

// Errorf adds this message to the trace's log, marks the trace as
// having failed, and logs it at Error level.
func (t *Trace) Errorf(format string, a ...interface{}) error {
	err := fmt.Errorf(format, a...)
	t.t.SetError()
	t.t.LazyPrintf("error: %v", err)
	log.Log(log.Error, 1, "%s %s: error: %s", t.family, t.title,
		quote(err.Error()))
	return err
}

// Finish the trace. It must not be used after this is called.
func (t *Trace) Finish() {
	t.t.Finish()
}

func quote(s string) string {
	qs := strconv.Quote(s)
	return qs[1 : len(qs)-1]
}
