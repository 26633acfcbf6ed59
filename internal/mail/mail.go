// Package mail defines the data exchanged with the session engine: the
// Mail record to send, the Credentials to authenticate with, and the
// conservative address validator the engine checks both ends of an
// envelope against before it ever touches the wire.
package mail

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/submitq/smtpsubmit/internal/smtperr"
)

// Mail is one message to submit. From/To address validity is checked
// by Validate, not at construction time.
type Mail struct {
	Subject     string
	From        string
	FromName    string
	To          string
	ToName      string
	Text        string
	Attachments []string
}

// Credentials are the username/password a Session authenticates with.
// The caller owns them; a Pool clones them into each worker's Session.
type Credentials struct {
	Username string
	Password string
}

// addressRE is the conservative RFC-5321-like address validator from
// the spec, applied over lowercase.
var addressRE = regexp.MustCompile(
	`^([a-z0-9_+]([a-z0-9_+.]*[a-z0-9_+])?)@([a-z0-9]+([\-.][a-z0-9]+)*\.[a-z]{2,6})`)

// Normalize lowercases addr and IDNA-converts its domain part, so the
// validator (which is case-sensitive over lowercase ASCII) sees a
// canonical form. Only ValidateAddress uses it; the addresses written to
// the wire are left as given. This is the resolution adopted
// for the regex's case-sensitivity (the original validator assumed
// lowercase input that callers did not reliably provide).
func Normalize(addr string) string {
	addr = strings.ToLower(addr)
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr
	}
	user, domain := addr[:at], addr[at+1:]
	if ascii, err := idna.ToASCII(domain); err == nil {
		domain = ascii
	}
	return user + "@" + domain
}

// ValidateAddress reports whether addr (after Normalize) matches the
// validator, returning a MailBoxName error naming it if not.
func ValidateAddress(addr string) error {
	if !addressRE.MatchString(Normalize(addr)) {
		return smtperr.Newf(smtperr.MailBoxName, addr)
	}
	return nil
}

// Validate checks both envelope addresses of m.
func (m Mail) Validate() error {
	if err := ValidateAddress(m.From); err != nil {
		return err
	}
	return ValidateAddress(m.To)
}

// HasAttachments reports whether m carries any attachment paths.
func (m Mail) HasAttachments() bool {
	return len(m.Attachments) > 0
}
