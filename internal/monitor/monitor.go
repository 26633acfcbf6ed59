// Package monitor exposes an optional HTTP server publishing the
// per-worker correlation traces internal/trace records, the same
// "/debug/requests" view chasquid's monitoring.go serves for its own
// long-running server process. Here it is opt-in: a one-shot CLI run
// has nothing to monitor once it exits, so nothing listens unless the
// driver is explicitly told an address to bind.
package monitor

import (
	"context"
	"fmt"
	"net/http"

	"blitiri.com.ar/go/log"
	// Registers "/debug/requests" and "/debug/events" on
	// http.DefaultServeMux as a side effect of being imported.
	_ "golang.org/x/net/trace"
)

// Serve starts an HTTP server on addr publishing /debug/requests, and
// returns immediately; the server runs until ctx is canceled. Errors
// other than the server being shut down are logged, not returned,
// matching chasquid's launchMonitoringServer, which treats a failed
// monitoring listener as non-fatal to the rest of the process.
func Serve(ctx context.Context, addr string) {
	srv := &http.Server{Addr: addr}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "<a href=\"/debug/requests\">/debug/requests</a>\n")
	})

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	go func() {
		log.Infof("monitoring HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("monitoring server failed: %v", err)
		}
	}()
}
