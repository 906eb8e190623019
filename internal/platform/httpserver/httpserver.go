package httpserver

import (
	"net/http"
	"time"
)

// New builds the process's HTTP server. Handler-level deadlines come from
// the Timeout middleware; these limits only bound slow or stalled clients.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
