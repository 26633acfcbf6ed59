package session

// Support is the tri-state flag a Session tracks for each EHLO extension:
// Unknown until a handshake either observes the extension (Supported) or
// resets it (NotSupported). Which flags a handshake resets, including the
// re-handshake after STARTTLS, is described on Capabilities.reset; the
// other flags keep their earlier value unless re-advertised.
type Support int

const (
	Unknown Support = iota
	Supported
	NotSupported
)

// Capabilities is the set of EHLO extensions a Session cares about.
type Capabilities struct {
	StartTLS   Support
	EightBit   Support
	Pipelining Support
	AuthPlain  Support
	AuthLogin  Support
}

// reset prepares Capabilities for a fresh EHLO. Only StartTLS is
// unconditionally reset to NotSupported (there is never a further upgrade
// to offer once tls is active, and a server that stops advertising it
// mid-session should not have the old value linger). AuthPlain is forced
// NotSupported too, but only when tls is true: plain auth is conventionally
// only advertised after STARTTLS, so a post-upgrade handshake that fails to
// re-advertise it must not silently keep the pre-TLS value. EightBit,
// Pipelining, and AuthLogin are left as they were; the handshake below
// re-sets them to Supported on observing the matching line, but an absent
// line does not downgrade them.
func (c *Capabilities) reset(tls bool) {
	c.StartTLS = NotSupported
	if tls {
		c.AuthPlain = NotSupported
	}
}
