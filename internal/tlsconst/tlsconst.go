// Package tlsconst renders TLS version/cipher-suite identifiers for
// human consumption in the preflight checker's report.
package tlsconst

import (
	"crypto/tls"
	"fmt"
)

var versionName = map[uint16]string{
	tls.VersionSSL30: "SSL-3.0",
	tls.VersionTLS10: "TLS-1.0",
	tls.VersionTLS11: "TLS-1.1",
	tls.VersionTLS12: "TLS-1.2",
	tls.VersionTLS13: "TLS-1.3",
}

// VersionName returns a human-readable TLS version name.
func VersionName(v uint16) string {
	if name, ok := versionName[v]; ok {
		return name
	}
	return fmt.Sprintf("TLS-%#04x", v)
}

// CipherSuiteName returns a human-readable cipher suite name, via the
// standard library's own suite table (crypto/tls.CipherSuiteName).
// chasquid's tlsconst generates its own IANA-derived table with a
// go:generate script not present in this tree. The stdlib table only
// names the suites crypto/tls implements; any other suite is rendered
// as its hex value, e.g. "0xC073".
func CipherSuiteName(s uint16) string {
	return tls.CipherSuiteName(s)
}
