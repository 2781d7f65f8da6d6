// Package server provides the HTTP server for the dactyl capture service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/dactyl/internal/app"
	"github.com/ayusman/dactyl/internal/server/api"
	"github.com/ayusman/dactyl/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	Logger    *slog.Logger
}

// Server represents the HTTP server for the dactyl application.
type Server struct {
	config Config
	logger *slog.Logger
	mux    *http.ServeMux
	start  time.Time
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		logger: logger.With("component", "server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	a := s.config.App

	if s.config.Store != nil {
		var plugins api.PluginLookup
		if a != nil {
			plugins = a.PluginManager()
		}

		actions := api.NewActionHandler(s.config.Store, plugins)
		s.mux.Handle("/api/actions", actions)
		s.mux.Handle("/api/actions/", actions)

		samples := api.NewSamplesHandler(s.config.Store)
		s.mux.Handle("/api/samples", samples)
		s.mux.Handle("/api/samples/", samples)

		sessions := api.NewSessionsHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if a != nil {
		session := api.NewSessionHandler(a)
		s.mux.Handle("/api/session", session)
		s.mux.Handle("/api/session/", session)

		model := api.NewModelHandler(a.Classifier())
		s.mux.Handle("/api/model", model)
		s.mux.Handle("/api/model/", model)

		plugins := api.NewPluginsHandler(a.PluginManager())
		s.mux.Handle("/api/plugins", plugins)
		s.mux.Handle("/api/plugins/", plugins)

		s.mux.Handle("/api/state", NewStateHandler(a, s.logger))
		s.mux.Handle("/api/stream", NewStreamHandler(a))
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
	if a := s.config.App; a != nil {
		response["running"] = a.Running()
		response["model_loaded"] = a.Classifier().Loaded()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address and blocks until
// it fails or Shutdown is called. After Shutdown it returns nil at once.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())

	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server. It may be called before or while
// the server is serving.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
