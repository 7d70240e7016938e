// Package web provides the HTTP API for previewing and running board imports.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/boardimport/internal/config"
	"github.com/JonMunkholm/boardimport/internal/importer"
	mw "github.com/JonMunkholm/boardimport/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Server is the HTTP server for the import API.
type Server struct {
	service  *importer.Service
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	validate *validator.Validate

	limiters []*ipRateLimiter
}

// NewServer creates a Server that runs imports through service.
func NewServer(service *importer.Service, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		router:   chi.NewRouter(),
		validate: validator.New(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/imports/status", s.handleImportStatus)
			r.Post("/ideas/{ideaID}/imports/preview", s.handlePreview)

			start := r.With()
			if s.cfg.Rate.Enabled {
				start = r.With(s.newLimiter(s.cfg.Rate.ImportLimit).middleware)
			}
			start.Post("/ideas/{ideaID}/imports", s.handleStartImport)

			r.Get("/imports/{runID}", s.handleImportSnapshot)
			r.Get("/imports/{runID}/result", s.handleImportResult)
			r.Post("/imports/{runID}/cancel", s.handleCancelImport)
		})

		// Streams run for the whole import and must not be cut off.
		r.Get("/imports/{runID}/progress", s.handleImportProgress)
	})
}

func (s *Server) newLimiter(perMinute int) *ipRateLimiter {
	l := newIPRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, l)
	return l
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight requests and
// then for running imports, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.Close()
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.service.WaitForImports(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
