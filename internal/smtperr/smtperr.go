// Package smtperr implements the error taxonomy used throughout the
// session engine and everything built on top of it.
//
// Every failure the engine can produce is classified into one of a
// small set of Kinds, each carrying a fixed retriability: the Retry
// wrapper (see internal/session) consults Retriable to decide whether
// an operation is worth attempting again.
package smtperr

import "fmt"

// Kind enumerates the failure categories from the error taxonomy.
type Kind int

const (
	// Protocol covers malformed replies, unexpected status codes, or
	// commands sent out of order.
	Protocol Kind = iota
	// Network covers I/O failures or timeouts on the transport.
	Network
	// DNS covers name resolution producing no usable address.
	DNS
	// ServerUnreachable covers a dial that was refused or timed out.
	ServerUnreachable
	// ServerUnavailable covers a 421 or unsolicited 554 mid-session.
	ServerUnavailable
	// InvalidServer covers an absent or unreadable greeting.
	InvalidServer
	// InvalidCred covers a 535 or 550 in reply to AUTH.
	InvalidCred
	// Policy covers a 550 or 450 on MAIL/RCPT/DATA-final.
	Policy
	// MailBoxName covers a locally-rejected address, or a 553 from the
	// server.
	MailBoxName
	// Forward covers a 551 on RCPT TO (a relay hint).
	Forward
	// MIMENotSupported covers attachments present without 8BITMIME.
	MIMENotSupported
	// File covers an attachment that could not be read.
	File
)

var names = map[Kind]string{
	Protocol:          "protocol error",
	Network:           "network error",
	DNS:               "DNS resolution failed",
	ServerUnreachable: "server unreachable",
	ServerUnavailable: "server unavailable",
	InvalidServer:     "invalid server",
	InvalidCred:       "invalid credentials",
	Policy:            "rejected by policy",
	MailBoxName:       "invalid mailbox name",
	Forward:           "address forwarded",
	MIMENotSupported:  "MIME not supported",
	File:              "attachment unreadable",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("smtperr.Kind(%d)", int(k))
}

// Retriable reports whether operations failing with this kind should be
// retried by the Retry wrapper.
func (k Kind) Retriable() bool {
	switch k {
	case Network, DNS, ServerUnavailable, ServerUnreachable:
		return true
	default:
		return false
	}
}

// Err is the concrete error value returned by the session engine. It
// carries its Kind and, for the kinds that need it, a Context string
// (the offending address, or reply text).
type Err struct {
	Kind    Kind
	Context string
}

func New(k Kind) *Err {
	return &Err{Kind: k}
}

func Newf(k Kind, context string) *Err {
	return &Err{Kind: k, Context: context}
}

func (e *Err) Error() string {
	if e.Context == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

// Retriable reports whether this error should be retried.
func (e *Err) Retriable() bool {
	return e.Kind.Retriable()
}

// Is lets errors.Is(err, smtperr.Protocol) work by matching on Kind alone.
func (e *Err) Is(target error) bool {
	t, ok := target.(*Err)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for errors.Is comparisons against a bare Kind.
var (
	ErrProtocol          = New(Protocol)
	ErrNetwork           = New(Network)
	ErrDNS               = New(DNS)
	ErrServerUnreachable = New(ServerUnreachable)
	ErrServerUnavailable = New(ServerUnavailable)
	ErrInvalidServer     = New(InvalidServer)
	ErrInvalidCred       = New(InvalidCred)
	ErrPolicy            = New(Policy)
)
