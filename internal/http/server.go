package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/appmint/authgate/internal/authn"
	"github.com/appmint/authgate/internal/metrics"
)

// Server represents the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	logger *slog.Logger
	health *HealthHandler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new HTTP server with default middleware.
func NewServer(addr string, opts ...Option) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		logger: slog.Default(),
		health: NewHealthHandler(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Default middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Request logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				s.logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	})

	r.Use(SecurityHeadersMiddleware(nil))

	// Health and metrics endpoints
	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// RouteConfig carries the handlers and middleware for MountRoutes.
type RouteConfig struct {
	OAuth         *OAuthHandler
	Admin         *AdminHandler
	Discovery     *DiscoveryHandler
	JWKS          *JWKSHandler
	Authenticator *authn.Authenticator

	// Requests per minute per IP; zero disables the limit.
	TokenRateLimit int
	LoginRateLimit int
}

// MountRoutes attaches the full route tree.
func (s *Server) MountRoutes(cfg RouteConfig) {
	r := s.router

	r.Get("/.well-known/openid-configuration", cfg.Discovery.OpenIDConfiguration)
	r.Get("/.well-known/jwks.json", cfg.JWKS.ServeJWKS)

	r.Group(func(r chi.Router) {
		if cfg.TokenRateLimit > 0 {
			r.Use(rateLimit(cfg.TokenRateLimit, "token"))
		}
		r.Post("/oauth/token", cfg.OAuth.Token)
		r.Post("/oauth/revoke", cfg.OAuth.Revoke)
		r.Post("/oauth/introspect", cfg.OAuth.Introspect)
	})
	r.Get("/oauth/authorize", cfg.OAuth.Authorize)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(CORSMiddleware(nil))

		r.Group(func(r chi.Router) {
			if cfg.LoginRateLimit > 0 {
				r.Use(rateLimit(cfg.LoginRateLimit, "login"))
			}
			r.Post("/admin/login", cfg.Admin.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticator.Middleware)

			r.Post("/admin/logout", cfg.Admin.Logout)
			r.Get("/users/me", cfg.Admin.Me)

			r.Group(func(r chi.Router) {
				r.Use(authn.RequirePermission("auth:read"))
				r.Get("/admin/sessions", cfg.Admin.ListSessions)
			})
			r.Group(func(r chi.Router) {
				r.Use(authn.RequirePermission("auth:delete"))
				r.Delete("/admin/sessions/{sessionID}", cfg.Admin.DeleteSession)
			})
		})
	})
}

func rateLimit(perMinute int, endpoint string) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitExceeded(endpoint)
			writeError(w, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}

// Router returns the chi router for adding routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Health returns the health handler so readiness can be toggled.
func (s *Server) Health() *HealthHandler {
	return s.health
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}
