// Package server wires the HTTP router, middleware, and route guards.
package server

import (
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	authhandler "blog-platform/auth-service/internal/auth/handler"
	"blog-platform/auth-service/internal/health"
	"blog-platform/auth-service/internal/security"
)

// Deps holds everything the router needs.
type Deps struct {
	Auth   *authhandler.AuthHandler
	Health *health.Handler
	Tokens *security.TokenProvider
	Logger *zap.Logger
	Tracer trace.Tracer
}

// NewRouter builds the chi router with the full middleware chain and all
// auth routes mounted under /api/auth.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	ApplyMiddlewares(r, deps.Logger, deps.Tracer)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/health", deps.Health.Check)
		r.Post("/register", deps.Auth.Register)
		r.Post("/login", deps.Auth.Login)
		r.Post("/refresh", deps.Auth.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(deps.Tokens, deps.Logger))
			r.Get("/me", deps.Auth.Me)
			r.Post("/logout", deps.Auth.Logout)
		})
	})

	return r
}
