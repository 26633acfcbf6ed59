// smtpsubmit-check is a connectivity preflight tool: given a config file,
// it dials the configured server, runs EHLO/STARTTLS capability discovery,
// and reports the negotiated capabilities and TLS version, without
// authenticating or sending any mail. Grounded on chasquid's
// cmd/smtp-check, adapted from a DNS/SPF/STS MX sweep to a single
// configured-target capability probe matching this driver's own Session.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/submitq/smtpsubmit/internal/config"
	"github.com/submitq/smtpsubmit/internal/session"
	"github.com/submitq/smtpsubmit/internal/tlsconst"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: smtpsubmit-check <config-file>")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== Connecting to %s\n", cfg.Addr())

	sessCfg := cfg.SessionConfig()
	if sessCfg.Timeout == 0 {
		sessCfg.Timeout = 5 * time.Second
	}

	s := session.New(cfg.Addr(), cfg.Server.Address, sessCfg, nil)
	if err := s.Discover(); err != nil {
		fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
		os.Exit(1)
	}

	caps := s.Caps()
	fmt.Println("=== Capabilities")
	fmt.Printf("  STARTTLS:   %s\n", supportString(caps.StartTLS))
	fmt.Printf("  8BITMIME:   %s\n", supportString(caps.EightBit))
	fmt.Printf("  PIPELINING: %s\n", supportString(caps.Pipelining))
	fmt.Printf("  AUTH PLAIN: %s\n", supportString(caps.AuthPlain))
	fmt.Printf("  AUTH LOGIN: %s\n", supportString(caps.AuthLogin))

	if state, ok := s.TLSState(); ok {
		fmt.Println("=== TLS")
		fmt.Printf("  Version:      %s\n", tlsconst.VersionName(state.Version))
		fmt.Printf("  Cipher suite: %s\n", tlsconst.CipherSuiteName(state.CipherSuite))
		fmt.Printf("  Server name:  %s\n", state.ServerName)
	} else {
		fmt.Println("=== TLS: not negotiated")
	}

	fmt.Println("=== Success")
}

func supportString(s session.Support) string {
	switch s {
	case session.Supported:
		return "yes"
	case session.NotSupported:
		return "no"
	default:
		return "unknown"
	}
}
