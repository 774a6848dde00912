package routes

import (
	"memberauth/internal/auth"
	"memberauth/internal/handlers"
	"memberauth/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	passwordHandler *handlers.PasswordHandler,
	sessionValidator auth.SessionValidator,
) {
	// Rate limiting config for auth endpoints
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no session required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/verify-2fa", authHandler.Verify)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/forgot-password", passwordHandler.Forgot)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/reset-password", passwordHandler.Reset)

	// Protected routes - valid session required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessionValidator))

		r.Get("/auth/session", authHandler.Session)
		r.Get("/auth/activity", authHandler.Activity)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/change-password", passwordHandler.Change)
	})
}
