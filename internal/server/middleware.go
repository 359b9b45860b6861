package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"blog-platform/auth-service/internal/auth/service"
	"blog-platform/auth-service/internal/security"
	"blog-platform/auth-service/internal/server/httperrors"
)

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}

type clientIPContextKey struct{}

// ApplyMiddlewares installs the base middleware chain: request id, real
// client IP, panic recovery, timeout, tracing, and request logging.
func ApplyMiddlewares(r chiRouter, log *zap.Logger, tracer trace.Tracer) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(clientIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	if tracer != nil {
		r.Use(tracing(tracer))
	}
	r.Use(requestLogger(log))
}

// AuthMiddleware guards routes behind Bearer access-token verification.
// Verification is stateless: signature and expiry only, no session lookup.
// On success the verified identity is stored in the request context.
func AuthMiddleware(tokens *security.TokenProvider, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessToken, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				})
				return
			}

			identity, err := tokens.ValidateAccess(accessToken)
			if err != nil {
				if log != nil {
					log.Debug("access token rejected", zap.Error(err))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid access token",
				})
				return
			}

			ctx := service.WithIdentity(r.Context(), service.Identity{
				AccountID: identity.AccountID,
				Username:  identity.Username,
				Email:     identity.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIP copies the resolved client address into the context so code
// running below the HTTP layer, like the audit logger, can read it.
// Runs after RealIP so RemoteAddr already reflects forwarding headers.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.RemoteAddr
		if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			host = h
		}
		ctx := context.WithValue(r.Context(), clientIPContextKey{}, host)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the client IP stored by the middleware chain, or "unknown"
// for contexts that did not pass through it.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPContextKey{}).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func tracing(tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}
