// Package server provides the operational HTTP API: health probes, a search
// endpoint and template metadata lookup.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getstacklabs/stackhub/internal/auth"
	"github.com/getstacklabs/stackhub/internal/registry"
	"github.com/getstacklabs/stackhub/internal/retrieval"
	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

// HTTPServer serves the operational REST API
type HTTPServer struct {
	server    *http.Server
	router    *chi.Mux
	logger    *slog.Logger
	retrieval *retrieval.Service
	registry  registry.TemplateRegistry

	defaultTopK int
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port        int
	APIKey      string
	DefaultTopK int
	Logger      *slog.Logger

	// Ready is polled by the readiness probe; nil means always ready.
	Ready func(context.Context) error
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg HTTPServerConfig, svc *retrieval.Service, reg registry.TemplateRegistry) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}

	s := &HTTPServer{
		logger:      logger,
		retrieval:   svc,
		registry:    reg,
		defaultTopK: cfg.DefaultTopK,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", healthCheckHandler())
	router.Get("/readyz", readinessCheckHandler(cfg.Ready))

	router.Route("/v1", func(r chi.Router) {
		r.Use(auth.APIKeyMiddleware(cfg.APIKey))
		r.Get("/search", s.handleSearch)
		r.Get("/templates/{id}", s.handleGetTemplate)
	})

	s.router = router
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// handleSearch serves GET /v1/search?q=...&tags=a&tags=b&language=...&category=...&k=...
//
// An empty result list is a 200 with count 0; it is never conflated with a
// failed search, which is a 5xx with a typed error body.
func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	k := s.defaultTopK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = parsed
	}

	filters := vectorstore.Filters{
		Tags:     r.URL.Query()["tags"],
		Language: r.URL.Query().Get("language"),
		Category: r.URL.Query().Get("category"),
	}

	results, err := s.retrieval.Search(r.Context(), query, filters, k)
	if err != nil {
		switch {
		case errors.Is(err, retrieval.ErrInvalidInput), errors.Is(err, vectorstore.ErrInvalidFilter):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write
		default:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// handleGetTemplate serves GET /v1/templates/{id}
func (s *HTTPServer) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tmpl, err := s.registry.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("template %q not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          tmpl.ID,
		"name":        tmpl.Name,
		"description": tmpl.Description,
		"tags":        tmpl.Tags,
		"language":    tmpl.Language,
		"category":    tmpl.Category,
		"repo_path":   tmpl.RepoPath,
		"updated_at":  tmpl.UpdatedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// readinessCheckHandler returns a handler for the /readyz endpoint
func readinessCheckHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
