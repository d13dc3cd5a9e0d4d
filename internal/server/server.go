// Package server provides the HTTP server for browsing and starting analyses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/handscope/internal/app"
	"github.com/ayusman/handscope/internal/capture"
	"github.com/ayusman/handscope/internal/detector"
	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/server/api"
	"github.com/ayusman/handscope/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	// App runs analyses started over HTTP. Nil makes the API read-only.
	App *app.App
	// Detector configures the preview endpoint.
	Detector detector.Config
	// OpenSource defaults to capture.NewFileSource.
	OpenSource func(path string) capture.Source
	Logger     *slog.Logger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *ProgressHub
	logger *slog.Logger
	start  time.Time

	// Background runs outlive the request that started them.
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var runs *store.RunRepository
	if config.Store != nil {
		runs = config.Store.Runs()
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		config:  config,
		mux:     http.NewServeMux(),
		hub:     NewProgressHub(runs, logger),
		logger:  logger.With("component", "server"),
		start:   time.Now(),
		baseCtx: ctx,
		stop:    stop,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		var launcher api.Launcher
		if s.config.App != nil {
			launcher = s
		}
		runHandler := api.NewRunHandler(s.config.Store, launcher)

		// Progress sockets share the /api/runs/ prefix with the REST handler
		runRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/progress") {
				s.hub.ServeHTTP(w, r)
				return
			}
			runHandler.ServeHTTP(w, r)
		})

		s.mux.Handle("/api/runs", runRouter)
		s.mux.Handle("/api/runs/", runRouter)
	}

	s.mux.Handle("/api/preview", NewPreviewHandler(s.config.Detector, s.config.OpenSource, s.config.Logger))

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

// Hub returns the progress hub.
func (s *Server) Hub() *ProgressHub {
	return s.hub
}

// Launch registers a run and analyses it in the background, publishing
// progress to the hub.
func (s *Server) Launch(source string) (*store.Run, error) {
	run, err := s.config.App.Begin(source)
	if err != nil {
		return nil, err
	}

	// The goroutine updates run as it goes; callers get the launch state.
	snapshot := *run

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.config.App.Run(s.baseCtx, run, s.hub.Publish)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("run failed", "run_id", run.ID, "source", source, "error", err)
		}
		s.hub.Finish(run)
	}()

	return &snapshot, nil
}

// Cancel stops an active run.
func (s *Server) Cancel(runID string) bool {
	return s.config.App.Cancel(runID)
}

// Wait blocks until every background run has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]any{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.App != nil {
		response["active_runs"] = s.config.App.Active()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down,
// cancelling background runs and waiting for them to record their outcome.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.stop()
		s.wg.Wait()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpSrv.Shutdown(shutdownCtx)
	s.stop()
	s.wg.Wait()
	if err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
