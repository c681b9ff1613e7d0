// Package frontend assembles the HTTP surface: the websocket quote streams
// and the health endpoint.
package frontend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quotepulse/quotepulse/frontend/stream"
	"github.com/quotepulse/quotepulse/utils/log"
)

// NewServer builds the HTTP server for the given listen address, with the
// stream endpoints and /health registered.
func NewServer(addr string, handlers *stream.Handlers, startTime time.Time) *http.Server {
	mux := http.NewServeMux()
	handlers.Register(mux)
	mux.HandleFunc("/health", healthHandler(startTime))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func healthHandler(startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"uptime": time.Since(startTime).Round(time.Second).String(),
		})
		if err != nil {
			log.Error("failed to write health response: %v", err)
		}
	}
}
