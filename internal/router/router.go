package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"authgate/internal/handler"
	"authgate/internal/metrics"
	"authgate/internal/middleware"
)

// Options carries the gateway settings the router needs.
type Options struct {
	CORSOrigins         []string
	RequestTimeout      time.Duration
	RateLimitRPM        int
	AuthRateLimitRPM    int
	RefreshRateLimitRPM int
	Recorder            metrics.Recorder
	MetricsHandler      http.Handler
}

func New(
	opts Options,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	healthHandler *handler.HealthHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(opts.RateLimitRPM, opts.Recorder)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(opts.Recorder))
	r.Use(middleware.CORS(opts.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", healthHandler.Check)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/auth", func(auth chi.Router) {
		auth.Use(rateLimitMiddleware.Handler)
		auth.Use(middleware.Timeout(opts.RequestTimeout))

		auth.With(rateLimitMiddleware.Limit("register", opts.AuthRateLimitRPM)).Post("/register", authHandler.Register)
		auth.With(rateLimitMiddleware.Limit("login", opts.AuthRateLimitRPM)).Post("/login", authHandler.Login)
		auth.With(rateLimitMiddleware.Limit("refresh", opts.RefreshRateLimitRPM)).Post("/refresh", authHandler.Refresh)

		auth.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)
			protected.Get("/users", userHandler.List)
			protected.Get("/users/{id}", userHandler.Get)
		})
	})

	return r
}
