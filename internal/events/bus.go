package events

import (
	"io"
	"sync"

	"blitiri.com.ar/go/log"

	"github.com/submitq/smtpsubmit/internal/maillog"
	"github.com/submitq/smtpsubmit/internal/trace"
)

// direction tracks which side last wrote to the wire transcript, so a
// "C: "/"S: " marker is only emitted when it changes.
type direction int

const (
	none direction = iota
	client
	server
)

// Bus is the mail-lifecycle event sink a Session and Pool report to. It
// renders lifecycle events as human log lines through logger, and raw wire
// bytes as a "C: "/"S: "-prefixed transcript through wire (if non-nil).
// A Bus is safe for concurrent use by multiple Session workers sharing one
// wire transcript: each marker and the chunk it precedes are written under
// the Bus's lock. Chunks from different workers still interleave in the
// transcript in the order they arrive.
type Bus struct {
	enabled bool
	logger  *log.Logger
	wire    io.Writer
	tr      *trace.Trace
	ml      *maillog.Logger
	mlAddr  string

	mu  sync.Mutex
	dir direction
}

// NewBus returns a Bus rendering lifecycle events through logger and, if
// wire is non-nil, raw bytes through wire. The bus starts enabled.
func NewBus(logger *log.Logger, wire io.Writer) *Bus {
	return &Bus{enabled: true, logger: logger, wire: wire}
}

// AttachTrace associates a per-worker correlation trace with the bus:
// every lifecycle event emitted afterward is also recorded on tr, in
// addition to the usual logger rendering, so a single Session's history
// is visible as one trace at /debug/requests when the monitoring
// listener is enabled.
func (b *Bus) AttachTrace(tr *trace.Trace) {
	b.mu.Lock()
	b.tr = tr
	b.mu.Unlock()
}

// AttachStructured associates a machine-readable maillog.Logger with the
// bus, alongside addr (the Session's dial target, used to tag
// connect/disconnect lines). Mail-send lines carry addr in their from=
// field, together with the Event's own Subject/To.
func (b *Bus) AttachStructured(ml *maillog.Logger, addr string) {
	b.mu.Lock()
	b.ml = ml
	b.mlAddr = addr
	b.mu.Unlock()
}

// Enable turns lifecycle and wire reporting back on.
func (b *Bus) Enable() {
	b.mu.Lock()
	b.enabled = true
	b.mu.Unlock()
}

// Disable suppresses all further reporting until Enable is called.
func (b *Bus) Disable() {
	b.mu.Lock()
	b.enabled = false
	b.mu.Unlock()
}

func (b *Bus) isEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// ClientBytes records data as having been sent by the client.
func (b *Bus) ClientBytes(data []byte) {
	b.wireBytes(client, data)
}

// ServerBytes records data as having been received from the server.
func (b *Bus) ServerBytes(data []byte) {
	b.wireBytes(server, data)
}

func (b *Bus) wireBytes(d direction, data []byte) {
	if b.wire == nil || !b.isEnabled() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	changed := b.dir != d
	b.dir = d

	if changed {
		prefix := "C: "
		if d == server {
			prefix = "S: "
		}
		b.wire.Write([]byte(prefix))
	}
	b.wire.Write(data)
}

// Emit reports a lifecycle event. Errors are rendered with their full
// human-readable message, not just their terse Kind string.
func (b *Bus) Emit(e Event) {
	if b.logger == nil || !b.isEnabled() {
		return
	}

	b.mu.Lock()
	tr := b.tr
	ml := b.ml
	addr := b.mlAddr
	b.mu.Unlock()

	switch e.Kind {
	case Connected:
		b.logger.Infof("connected to server.")
		if tr != nil {
			tr.Printf("connected")
		}
		if ml != nil {
			ml.Connected(addr)
		}
	case Disconnected:
		b.logger.Infof("connection closed.")
		if tr != nil {
			tr.Printf("disconnected")
		}
		if ml != nil {
			ml.Disconnected(addr)
		}
	case Retry:
		b.logger.Infof("retrying...")
		if tr != nil {
			tr.Printf("retrying")
		}
	case FailedToConnect:
		b.logger.Errorf("connecting failed: %s", errorMessage(e.Err))
		if tr != nil {
			tr.Errorf("connect failed: %s", errorMessage(e.Err))
		}
		if ml != nil {
			ml.FailedToConnect(addr, e.Err)
		}
	case FailToDisconnect:
		// Mirrors the original behavior: a failure to close cleanly is
		// swallowed, since the mail has already been sent or abandoned.
	case MailSent:
		b.logger.Infof("--> sent [%s] to <%s>.", e.Subject, e.To)
		if tr != nil {
			tr.Printf("sent [%s] to <%s>", e.Subject, e.To)
		}
		if ml != nil {
			ml.SendAttempt(addr, e.To, e.Subject, nil)
		}
	case FailedToSendMail:
		b.logger.Errorf("--> sending [%s] to <%s> failed: %s",
			e.Subject, e.To, errorMessage(e.Err))
		if tr != nil {
			tr.Errorf("sending [%s] to <%s> failed: %s", e.Subject, e.To, errorMessage(e.Err))
		}
		if ml != nil {
			ml.SendAttempt(addr, e.To, e.Subject, e.Err)
		}
	}
}
