package httpserver

import (
	"net/http"
	"time"
)

// New builds the ledger's HTTP server. Write and idle timeouts are generous
// because category recomputation scans the whole ledger before responding.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
