// Package pool implements the Submission Pool: a batch of mails is handed
// to a fixed number of workers, each owning its own session.Session, pulling
// from a shared queue until it is empty. This mirrors the worker/mutex
// pattern chasquid's internal/queue uses to fan a queue out over concurrent
// senders, adapted here to a fixed batch instead of an ever-growing queue.
package pool

import (
	"io"
	"sync"

	"github.com/submitq/smtpsubmit/internal/events"
	"github.com/submitq/smtpsubmit/internal/mail"
	"github.com/submitq/smtpsubmit/internal/maillog"
	"github.com/submitq/smtpsubmit/internal/session"
	"github.com/submitq/smtpsubmit/internal/smtperr"
	"github.com/submitq/smtpsubmit/internal/trace"
)

// Result is the per-mail outcome slot of a Run, indexed identically to
// the input batch.
type Result struct {
	Err error
}

// Ok reports whether this slot's mail was sent successfully.
func (r Result) Ok() bool { return r.Err == nil }

// Config controls how Run fans work out across workers.
type Config struct {
	// MaxWorkers is the number of concurrent Sessions. Values <= 1 run
	// the serial path: a single Session sends every mail in order.
	MaxWorkers int
	// StructuredLog, if non-nil, receives one machine-readable line per
	// connect/disconnect/send event across all workers (see
	// internal/maillog), in addition to the free-text rendering every
	// worker's Bus already does.
	StructuredLog io.Writer
}

// queue is the mutex-guarded shared work list: workers lock, pop the
// front mail together with its original index, and release the lock
// before doing any I/O.
type queue struct {
	mu    sync.Mutex
	mails []mail.Mail
	next  int
}

func (q *queue) pop() (mail.Mail, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.mails) {
		return mail.Mail{}, 0, false
	}
	i := q.next
	q.next++
	return q.mails[i], i, true
}

// Run submits every mail in batch, authenticating with cred against addr,
// using up to cfg.MaxWorkers concurrent Sessions (capped to len(batch)).
// sessionCfg is cloned into every worker's Session. newBus is called once
// per worker, possibly concurrently, and the worker's Session reports to
// the Bus it returns; newBus may return the same Bus to every worker.
//
// The returned []Result has one entry per mail in batch, in original
// order. If every worker failed to connect, Run also returns a
// ServerUnreachable error; a partial-failure batch (some mails sent, some
// not) returns the result slice with a nil error, since the pool itself
// did not fail — callers inspect Result.Err per slot.
func Run(addr, host string, sessionCfg session.Config, cred mail.Credentials,
	batch []mail.Mail, cfg Config, newBus func() *events.Bus) ([]Result, error) {

	if len(batch) == 0 {
		return nil, nil
	}

	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	var ml *maillog.Logger
	if cfg.StructuredLog != nil {
		ml = maillog.New(cfg.StructuredLog)
	}

	if workers == 1 {
		return runSerial(addr, host, sessionCfg, cred, batch, newBus(), ml)
	}

	q := &queue{mails: batch}
	results := make([]Result, len(batch))
	var mu sync.Mutex // guards connectFailures and results writes
	var connectFailures int
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			runWorker(addr, host, sessionCfg, cred, q, results, &mu, &connectFailures, newBus(), ml)
		}()
	}
	wg.Wait()

	if connectFailures == workers {
		err := smtperr.New(smtperr.ServerUnreachable)
		for i := range results {
			results[i] = Result{Err: err}
		}
		return results, err
	}
	return results, nil
}

func runWorker(addr, host string, sessionCfg session.Config, cred mail.Credentials,
	q *queue, results []Result, mu *sync.Mutex, connectFailures *int, bus *events.Bus, ml *maillog.Logger) {

	tr := trace.New("session", addr)
	defer tr.Finish()
	bus.AttachTrace(tr)
	if ml != nil {
		bus.AttachStructured(ml, addr)
	}

	s := session.New(addr, host, sessionCfg, bus)
	if err := s.Connect(cred); err != nil {
		mu.Lock()
		*connectFailures++
		mu.Unlock()
		return
	}

	for {
		m, i, ok := q.pop()
		if !ok {
			break
		}
		err := s.SendMail(m)
		mu.Lock()
		results[i] = Result{Err: err}
		mu.Unlock()
	}

	s.Close()
}

// runSerial is the single-Session path used when workers == 1: every mail
// is sent in order over one connection, with no queue or locking needed.
func runSerial(addr, host string, sessionCfg session.Config, cred mail.Credentials,
	batch []mail.Mail, bus *events.Bus, ml *maillog.Logger) ([]Result, error) {

	results := make([]Result, len(batch))

	tr := trace.New("session", addr)
	defer tr.Finish()
	bus.AttachTrace(tr)
	if ml != nil {
		bus.AttachStructured(ml, addr)
	}

	s := session.New(addr, host, sessionCfg, bus)
	if err := s.Connect(cred); err != nil {
		for i := range results {
			results[i] = Result{Err: err}
		}
		return results, smtperr.New(smtperr.ServerUnreachable)
	}

	for i, m := range batch {
		results[i] = Result{Err: s.SendMail(m)}
	}

	s.Close()
	return results, nil
}
