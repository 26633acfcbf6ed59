// Package transport owns the single TCP connection (and, after an
// upgrade, the TLS session layered on top of it) that a Session
// drives. It exposes uniform read/write regardless of whether TLS is
// active, so the session engine above it never has to branch on
// connection state.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/submitq/smtpsubmit/internal/smtperr"
)

// Conn is a transport connection: a TCP socket, optionally with a TLS
// session layered over it. Reads and writes always go through
// whichever is active; the plaintext socket is never touched again
// once UpgradeTLS succeeds.
//
// The TLS client is layered over the raw socket once, in UpgradeTLS,
// and kept for the rest of the Conn's life. Conn also keeps the raw
// socket itself, so SetTimeouts and Shutdown act on it directly, TLS
// or not.
type Conn struct {
	raw net.Conn
	tls *tls.Conn
	buf *bufio.Reader
}

// Dial resolves addr's host and opens a TCP connection to it within
// timeout. Resolution and connection are distinct failure modes: a name
// that doesn't resolve is smtperr.DNS, while a resolved address that
// refuses or times out the connection is smtperr.ServerUnreachable.
func Dial(addr string, timeout time.Duration) (*Conn, error) {
	resolved, err := resolve(addr)
	if err != nil {
		return nil, err
	}

	c, err := net.DialTimeout("tcp", resolved, timeout)
	if err != nil {
		return nil, smtperr.New(smtperr.ServerUnreachable)
	}
	return &Conn{raw: c, buf: bufio.NewReader(c)}, nil
}

// resolve looks up addr's host part and returns a "host:port" with the
// host replaced by the first resolved address, or smtperr.DNS if the
// host doesn't parse or resolve to anything.
func resolve(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", smtperr.New(smtperr.DNS)
	}

	ips, err := net.DefaultResolver.LookupHost(context.Background(), host)
	if err != nil || len(ips) == 0 {
		return "", smtperr.New(smtperr.DNS)
	}

	return net.JoinHostPort(ips[0], port), nil
}

// Reader returns a reader over the connection's current byte stream,
// for use by the wire parser. UpgradeTLS replaces it with a reader over
// the TLS stream, so callers should fetch it again after UpgradeTLS
// rather than caching it.
func (c *Conn) Reader() *bufio.Reader {
	return c.buf
}

// Write writes b to the connection's current byte stream.
func (c *Conn) Write(b []byte) error {
	var err error
	if c.tls != nil {
		_, err = c.tls.Write(b)
	} else {
		_, err = c.raw.Write(b)
	}
	if err != nil {
		return smtperr.New(smtperr.Network)
	}
	return nil
}

// SetTimeouts applies d as both the read and write deadline for the
// next operation.
func (c *Conn) SetTimeouts(d time.Duration) error {
	if err := c.raw.SetDeadline(time.Now().Add(d)); err != nil {
		return smtperr.New(smtperr.Network)
	}
	return nil
}

// UpgradeTLS performs a client TLS handshake over the existing TCP
// socket and, on success, switches all subsequent reads and writes to
// go through it. serverName is used both for SNI and certificate
// verification against the platform's trust roots; no client
// certificate is presented.
func (c *Conn) UpgradeTLS(serverName string) error {
	conf := &tls.Config{ServerName: serverName}
	t := tls.Client(c.raw, conf)
	if err := t.Handshake(); err != nil {
		return smtperr.New(smtperr.Network)
	}
	c.tls = t
	c.buf = bufio.NewReader(t)
	return nil
}

// IsTLS reports whether the connection has been upgraded.
func (c *Conn) IsTLS() bool {
	return c.tls != nil
}

// TLSState returns the negotiated TLS connection state, if the
// connection has been upgraded.
func (c *Conn) TLSState() (tls.ConnectionState, bool) {
	if c.tls == nil {
		return tls.ConnectionState{}, false
	}
	return c.tls.ConnectionState(), true
}

// Shutdown closes the underlying socket (and, transitively, any TLS
// session layered over it).
func (c *Conn) Shutdown() {
	if c.raw != nil {
		c.raw.Close()
	}
}
