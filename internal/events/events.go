// Package events implements the mail-lifecycle Event Bus: a sink that
// receives Connected/Disconnected/MailSent-style lifecycle events and raw
// client/server wire bytes, and renders both to a log file with human
// messages and a "C: "/"S: " prefixed byte transcript.
package events

import (
	"fmt"

	"github.com/submitq/smtpsubmit/internal/smtperr"
)

// Kind identifies which lifecycle event occurred.
type Kind int

const (
	Connected Kind = iota
	FailedToConnect
	Disconnected
	FailToDisconnect
	Retry
	MailSent
	FailedToSendMail
)

// Event is a single lifecycle occurrence. Not every field is populated for
// every Kind: Err is set for the FailedTo* kinds, Subject/To for the
// mail-sending kinds.
type Event struct {
	Kind    Kind
	Err     error
	Subject string
	To      string
}

func NewConnected() Event        { return Event{Kind: Connected} }
func NewDisconnected() Event     { return Event{Kind: Disconnected} }
func NewRetry() Event            { return Event{Kind: Retry} }
func NewFailedToConnect(err error) Event {
	return Event{Kind: FailedToConnect, Err: err}
}
func NewFailToDisconnect(err error) Event {
	return Event{Kind: FailToDisconnect, Err: err}
}
func NewMailSent(subject, to string) Event {
	return Event{Kind: MailSent, Subject: subject, To: to}
}
func NewFailedToSendMail(subject, to string, err error) Event {
	return Event{Kind: FailedToSendMail, Subject: subject, To: to, Err: err}
}

// errorMessage renders err the way the driver reports it to a human,
// independent of the terse Kind string used in logs and errors.Is checks.
func errorMessage(err error) string {
	e, ok := err.(*smtperr.Err)
	if !ok {
		return err.Error()
	}
	switch e.Kind {
	case smtperr.File:
		return fmt.Sprintf("failed to open file: %s", e.Context)
	case smtperr.Protocol:
		return "there was an error on the mail server side."
	case smtperr.MailBoxName:
		return fmt.Sprintf("invalid email address <%s>", e.Context)
	case smtperr.ServerUnreachable:
		return "can't reach the server, try again later."
	case smtperr.ServerUnavailable:
		return "server abruptly ended the connection."
	case smtperr.MIMENotSupported:
		return "MIME not supported by server, can't send attachments."
	case smtperr.InvalidServer:
		return "the server address entered is probably not an SMTP one."
	case smtperr.Network:
		return "disconnected due to a network issue."
	case smtperr.DNS:
		return "failed to resolve hostname."
	case smtperr.InvalidCred:
		return "the credentials entered were rejected by the server."
	case smtperr.Policy:
		return "the mail request was rejected by the server due to some policy."
	case smtperr.Forward:
		return fmt.Sprintf("the entered address was an old one: %s", e.Context)
	default:
		return err.Error()
	}
}
