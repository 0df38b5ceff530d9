// Package server exposes the crawl pipeline over HTTP for on-demand runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"postcrawler/pkg/config"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
)

// Crawler runs on-demand crawls
type Crawler interface {
	CrawlURLs(ctx context.Context, urls []string, max int) (*models.RunSummary, error)
}

// RunHistory lists recent runs
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
}

// Server is the on-demand HTTP front end
type Server struct {
	httpServer *http.Server
	crawler    Crawler
	runs       RunHistory
	secret     string
	acceptJWT  bool
	timeout    time.Duration
	maxURLs    int
	validate   *validator.Validate
	logger     logger.Logger
}

// New creates a server; runs may be nil to disable GET /runs
func New(cfg config.ServerConfig, crawler Crawler, runs RunHistory, log logger.Logger) (*Server, error) {
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("server: an API secret is required")
	}
	if crawler == nil {
		return nil, fmt.Errorf("server: crawler is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	maxURLs := cfg.MaxURLs
	if maxURLs <= 0 || maxURLs > config.MaxOnDemandURLs {
		maxURLs = config.MaxOnDemandURLs
	}
	addr := cfg.Address
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		crawler:   crawler,
		runs:      runs,
		secret:    cfg.APISecret,
		acceptJWT: cfg.AcceptJWT,
		timeout:   timeout,
		maxURLs:   maxURLs,
		validate:  validator.New(),
		logger:    log.WithField("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /crawl", s.requireBearer(s.handleCrawl))
	mux.HandleFunc("GET /runs", s.requireBearer(s.handleRuns))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withLogging(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      timeout + time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("Server starting", map[string]interface{}{"address": ln.Addr().String()})
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}

// withLogging records every request
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.DebugWithFields("Request served", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Warn("Error encoding JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// withTimeout bounds a crawl by the configured request timeout
func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}
