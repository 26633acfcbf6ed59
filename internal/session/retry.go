package session

import (
	"github.com/submitq/smtpsubmit/internal/events"
	"github.com/submitq/smtpsubmit/internal/mail"
	"github.com/submitq/smtpsubmit/internal/smtperr"
)

// retry runs op in a bounded loop: on success, return nil; on a retriable
// failure with remaining budget, emit Retry and try again; otherwise
// propagate the error. This is the Retry Wrapper, applied identically to
// Connect, SendMail, and Close.
func (s *Session) retry(op func() error) error {
	budget := s.cfg.Retries
	for {
		err := op()
		if err == nil {
			return nil
		}
		kind, ok := errKind(err)
		if !ok || !kind.Retriable() || budget <= 0 {
			return err
		}
		budget--
		s.emit(events.NewRetry())
	}
}

func errKind(err error) (smtperr.Kind, bool) {
	e, ok := err.(*smtperr.Err)
	if !ok {
		return 0, false
	}
	return e.Kind, true
}

// Connect performs the full connect sequence (dial, handshake, optional
// STARTTLS, authenticate), retried per Config.Retries on retriable
// failures.
func (s *Session) Connect(cred mail.Credentials) error {
	err := s.retry(func() error { return s.tryConnect(cred) })
	if err != nil {
		s.emit(events.NewFailedToConnect(err))
		return err
	}
	s.emit(events.NewConnected())
	return nil
}

// SendMail sends one mail transaction, retried per Config.Retries on
// retriable failures.
func (s *Session) SendMail(m mail.Mail) error {
	err := s.retry(func() error { return s.trySendMail(m) })
	if err != nil {
		s.emit(events.NewFailedToSendMail(m.Subject, m.To, err))
		return err
	}
	s.emit(events.NewMailSent(m.Subject, m.To))
	return nil
}

// Close sends QUIT and tears down the connection, retried per
// Config.Retries on retriable failures.
func (s *Session) Close() error {
	err := s.retry(func() error { return s.tryClose() })
	if err != nil {
		s.emit(events.NewFailToDisconnect(err))
		return err
	}
	s.emit(events.NewDisconnected())
	return nil
}

// CloseIfAutoQuit calls Close and discards its result, for use by a caller
// that holds a Session past its last SendMail and wants a best-effort quit
// without bubbling up a termination error (Config.AutoQuit semantics).
func (s *Session) CloseIfAutoQuit() {
	if s.cfg.AutoQuit {
		_ = s.Close()
	}
}
