// Package server provides the HTTP server for stylecam.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/stylecam/internal/server/api"
	"github.com/ayusman/stylecam/internal/session"
	"github.com/ayusman/stylecam/internal/store"
)

// Session is the capture session the server exposes.
type Session interface {
	api.Controller
	PreviewSource
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Session   Session
	Analyzer  api.Analyzer
}

// Server represents the HTTP server for the stylecam application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler
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
	s.mux.Handle("/api/styles", api.NewStylesHandler())

	// Register capture API handlers if Store is configured
	if s.config.Store != nil {
		captures := api.NewCaptureHandler(s.config.Store, s.config.Analyzer)
		s.mux.Handle("/api/captures", captures)
		s.mux.Handle("/api/captures/", captures)
		s.mux.Handle("/api/stats", api.NewStatsHandler(s.config.Store))
	}

	// Register session control, preview stream and events if a session is running
	if s.config.Session != nil {
		sessionHandler := api.NewSessionHandler(s.config.Session)
		s.mux.Handle("/api/session", sessionHandler)
		s.mux.Handle("/api/session/", sessionHandler)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Session))

		s.events = NewEventsHandler(s.config.Session)
		s.mux.Handle("/api/events", s.events)
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
	if s.config.Session != nil {
		snap := s.config.Session.Snapshot()
		response["session"] = snap.State
		if snap.EstimatorError != "" {
			response["estimator"] = snap.EstimatorError
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close stops background broadcasting.
func (s *Server) Close() {
	if s.events != nil {
		s.events.Close()
	}
}

// ShutdownTimeout bounds how long ListenAndServe waits for open requests
// once its context ends.
const ShutdownTimeout = 5 * time.Second

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ Session = (*session.Session)(nil)
