package routes

import (
	"github.com/BradenHooton/kamino-gate/internal/auth"
	"github.com/BradenHooton/kamino-gate/internal/handlers"
	"github.com/BradenHooton/kamino-gate/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *auth.TokenManager,
	loginRateLimit middleware.RateLimitConfig,
) {
	router.Get("/health", healthHandler.Health)

	router.Route("/authentication", func(r chi.Router) {
		r.With(middleware.RateLimitByIP(loginRateLimit)).Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(tokenManager))
			r.Get("/me", authHandler.Me)
		})
	})
}
