package repository

import (
	"context"
	"time"

	"blog-platform/auth-service/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
