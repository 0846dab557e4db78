package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dvcrn/fetchbridge/fetch"
	"github.com/dvcrn/fetchbridge/internal/logger"
)

// Server relays HTTP requests through the fetch dispatcher
type Server struct {
	client  *fetch.Client
	mux     *http.ServeMux
	handler http.Handler
	started time.Time
}

// NewServer creates a new server. A nil client uses fetch.DefaultClient.
func NewServer(client *fetch.Client) *Server {
	if client == nil {
		client = fetch.DefaultClient()
	}
	s := &Server{
		client:  client,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.setupRoutes()
	s.handler = requestIDMiddleware(loggingMiddleware(s.mux))

	return s
}

// Start listens on addr and serves until the listener fails
func (s *Server) Start(addr string) error {
	logger.Get().Info().Msgf("Starting fetch proxy on %s", addr)
	return http.ListenAndServe(addr, s)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/healthz", s.healthzHandler)
	s.mux.HandleFunc("/fetch", s.apiKeyMiddleware(s.fetchHandler))
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// healthzHandler handles GET /healthz
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Get().Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, extra map[string]interface{}) {
	body := map[string]interface{}{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}
