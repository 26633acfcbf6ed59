// smtpsubmit is a small command-line driver around the submission
// library: given a TOML config file naming a server, a user, and a batch
// of mails, it connects (optionally in parallel across several workers),
// authenticates, sends every mail, and reports per-mail results.
//
// See https://pkg.go.dev/github.com/submitq/smtpsubmit for the library.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"blitiri.com.ar/go/log"
	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/submitq/smtpsubmit/internal/config"
	"github.com/submitq/smtpsubmit/internal/events"
	"github.com/submitq/smtpsubmit/internal/monitor"
	"github.com/submitq/smtpsubmit/internal/pool"
)

const usage = `smtpsubmit: submit a batch of mail over SMTP.

Usage:
  smtpsubmit [options] <config-file>
  smtpsubmit -h | --help
  smtpsubmit --version

Options:
  -v              Verbose (debug-level) logging.
  --logfile=<path>  Write the raw C:/S: wire transcript to this file,
                    overriding the config file's [config] logfile key.
  --eventlog=<path>  Write one machine-readable connect/send event per
                    line to this file, in addition to the usual logging.
  --monitoring-addr=<addr>  Serve /debug/requests (per-worker traces) on
                    this address for the duration of the run.
  -h --help       Show this help.
  --version       Show version.
`

const version = "smtpsubmit 0.1"

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		// docopt already printed usage/the parse error.
		os.Exit(1)
	}

	if v, _ := opts.Bool("-v"); v {
		log.Default.Level = log.Debug
	}

	configPath, _ := opts.String("<config-file>")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	logfilePath := cfg.Config.Logfile
	if lf, _ := opts.String("--logfile"); lf != "" {
		logfilePath = lf
	}

	var wire *os.File
	if logfilePath != "" {
		wire, err = os.OpenFile(logfilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Errorf("opening logfile %q: %v", logfilePath, err)
			os.Exit(1)
		}
		defer wire.Close()
	}

	cred := cfg.Credentials()
	if cred.Password == "" {
		cred.Password = promptPassword()
	}

	mails := cfg.Mails()
	if len(mails) == 0 {
		log.Infof("no [[mail]] entries in %s, nothing to do", configPath)
		return
	}

	workers := 1
	if cfg.Parallel() {
		workers = cfg.MaxChannels()
	}

	if addr, _ := opts.String("--monitoring-addr"); addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		monitor.Serve(ctx, addr)
	}

	var eventlog *os.File
	if p, _ := opts.String("--eventlog"); p != "" {
		eventlog, err = os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Errorf("opening eventlog %q: %v", p, err)
			os.Exit(1)
		}
		defer eventlog.Close()
	}

	// One Bus is shared by every worker when a wire transcript is being
	// written: Bus already serializes its own C:/S: prefix bookkeeping,
	// so a single synchronized instance is simpler than giving each
	// worker its own file handle (spec.md §5's other permitted option).
	sharedBus := events.NewBus(log.Default, wire)
	newBus := func() *events.Bus { return sharedBus }

	results, err := pool.Run(cfg.Addr(), cfg.Server.Address, cfg.SessionConfig(),
		cred, mails, pool.Config{MaxWorkers: workers, StructuredLog: eventlog}, newBus)
	if err != nil {
		log.Errorf("submission failed: %v", err)
		os.Exit(1)
	}

	failed := 0
	for i, r := range results {
		if !r.Ok() {
			failed++
			log.Errorf("mail %d to %s: %v", i, mails[i].To, r.Err)
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d mails failed to send\n", failed, len(results))
		os.Exit(1)
	}
}

func promptPassword() string {
	fmt.Fprintf(os.Stderr, "Password: ")
	p, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("reading password: %v", err)
	}
	return string(p)
}
