// Package server provides the HTTP control and preview surface for the cloak pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/cloak/internal/server/api"
	"github.com/ayusman/cloak/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller api.Controller
	Frames     *FrameHub
}

// Server represents the HTTP server for the cloak application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	status *StatusHandler

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Live controls need the running pipeline
	if s.config.Controller != nil {
		control := api.NewControlHandler(s.config.Controller, s.config.Store)
		s.mux.HandleFunc("/api/range", control.Range)
		s.mux.HandleFunc("/api/status", control.Status)
		s.mux.HandleFunc("/api/enabled", control.Enabled)
		s.mux.HandleFunc("/api/recapture", control.Recapture)
		s.mux.HandleFunc("/api/quit", control.Quit)

		s.status = NewStatusHandler(s.config.Controller, DefaultStatusInterval)
		s.mux.Handle("/api/ws", s.status)
	}

	// Presets only need the store; applying one also needs the pipeline
	if s.config.Store != nil {
		presets := api.NewPresetHandler(s.config.Store, s.config.Controller)
		s.mux.Handle("/api/presets", presets)
		s.mux.Handle("/api/presets/", presets)
	}

	// Preview streams
	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames, FeedOutput))
		s.mux.Handle("/api/mask", NewStreamHandler(s.config.Frames, FeedMask))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address. It returns
// nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the status feed and gracefully stops the HTTP server.
// Open preview streams end when the frame hub closes.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.status != nil {
		s.status.Close()
	}

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
