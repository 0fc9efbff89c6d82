// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package server exposes the scan pipeline, expense history and search
// over a JSON HTTP API documented with OpenAPI.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/visualfin/visualfin/internal/receipt"
	vferr "github.com/visualfin/visualfin/pkg/errors"
)

// DefaultVersion is reported when Config.Version is empty.
const DefaultVersion = "0.1.0"

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr  string
	CORSOrigins []string
	// ReadTimeout and WriteTimeout default to 30s and 120s. Scans wait on
	// up to three model calls, so the write timeout is generous.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	// ReceiptMaxSide bounds uploaded receipts before analysis; zero uses
	// receipt.DefaultMaxSide.
	ReceiptMaxSide int
	Version        string
	// Services enables the expense API. Without it only health and config
	// routes are served.
	Services   *Services
	ConfigDeps *ConfigDeps
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router     chi.Router
	handler    http.Handler
	api        huma.API
	cfg        Config
	services   *Services
	configDeps *ConfigDeps

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with chi router, huma API, health endpoint, CORS
// and rate limiting, and registers the API routes that cfg enables.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, vferr.New(vferr.CodeServerConfigInvalid, "listen address is required")
	}
	for _, origin := range cfg.CORSOrigins {
		if origin == "*" {
			return nil, vferr.New(vferr.CodeServerConfigInvalid,
				"wildcard CORS origin is not allowed; list the web UI origins explicitly")
		}
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 120 * time.Second
	}
	if cfg.ReceiptMaxSide <= 0 {
		cfg.ReceiptMaxSide = receipt.DefaultMaxSide
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	done := make(chan struct{})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(securityHeaders)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, done))

	humaConfig := huma.DefaultConfig("VisualFin API", cfg.Version)
	humaConfig.Info.Description = "Receipt scanning, expense history and semantic expense search"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	srv := &Server{
		router:     r,
		handler:    otelhttp.NewHandler(r, "visualfin-api", otelhttp.WithSpanNameFormatter(spanName)),
		api:        api,
		cfg:        cfg,
		services:   cfg.Services,
		configDeps: cfg.ConfigDeps,
		done:       done,
	}

	if srv.services != nil {
		srv.registerRoutes()
	}
	srv.registerConfigRoutes()

	return srv, nil
}

func spanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

// Handler returns the instrumented http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return vferr.Errorf(vferr.CodeServerStartFailure, "listening on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return vferr.Errorf(vferr.CodeServerStartFailure, "serving: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return vferr.Errorf(vferr.CodeServerShutdownFailure, "shutting down: %w", err)
	}

	return <-errCh
}

// Close stops background work such as rate limiter cleanup. It is safe to
// call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		h.Set("X-XSS-Protection", "0")
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; img-src 'self' data:; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}
