// Package api provides the HTTP API server and handlers for the library server.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/library-server/internal/config"
	"github.com/listenupapp/library-server/internal/ratelimit"
	"github.com/listenupapp/library-server/internal/service"
)

// Services bundles the business services the handlers call.
type Services struct {
	Auth     *service.AuthService
	Accounts *service.AccountService
	Catalog  *service.CatalogService
	Lending  *service.LendingService
	Loans    *service.LoanQueryService
}

// HealthCheck reports whether one backing component is reachable.
type HealthCheck func(ctx context.Context) error

// Server holds dependencies for HTTP handlers.
type Server struct {
	services        *Services
	healthChecks    map[string]HealthCheck
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	authRateLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, healthChecks map[string]HealthCheck, cfg *config.Config, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s := &Server{
		services:        services,
		healthChecks:    healthChecks,
		router:          router,
		api:             humachi.New(router, newHumaConfig()),
		logger:          logger,
		authRateLimiter: ratelimit.PerInterval(cfg.Auth.LoginRatePerMinute, time.Minute),
	}
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

func newHumaConfig() huma.Config {
	humaConfig := huma.DefaultConfig("Library API", "1.0.0")
	humaConfig.Info.Description = "Catalog and lending API for a single-copy library"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	// The $schema link transformer would put a field inside every envelope's data.
	humaConfig.CreateHooks = nil
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	return humaConfig
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerAuthorRoutes()
	s.registerBookRoutes()
	s.registerOrderRoutes()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, e.g. for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}
