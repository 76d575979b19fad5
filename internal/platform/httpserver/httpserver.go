// Package httpserver constructs the API server with timeouts tuned for this
// workload: many short per-utterance exchanges plus small admin payloads, no
// streaming and no long polls.
package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New builds the HTTP server. Every endpoint completes a full request/response
// cycle well inside the write timeout; a session waiting on human review is
// suspended server-side, not held on a connection.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
