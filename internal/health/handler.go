// Package health serves the readiness endpoint.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"blog-platform/auth-service/internal/server/httperrors"
)

const serviceName = "auth-service"

type status struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Handler reports service health including database reachability.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler returns a health handler. pool may be nil in degraded mode.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// Check handles GET /api/auth/health.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			httperrors.Write(w, http.StatusServiceUnavailable, status{Status: "degraded", Service: serviceName})
			return
		}
	}
	httperrors.Write(w, http.StatusOK, status{Status: "ok", Service: serviceName})
}
