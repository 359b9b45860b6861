package repository

import (
	"context"
	"errors"

	"blog-platform/auth-service/internal/account/domain"
)

// ErrDuplicate is returned by Create when the username or email is already
// taken. The unique constraints live in the database, so concurrent inserts
// of the same identifier cannot both succeed.
var ErrDuplicate = errors.New("account already exists")

// Repository defines persistence for accounts.
type Repository interface {
	// GetByID returns the account for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIdentifier returns the account whose email or username matches
	// the identifier, or nil if neither does.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	// Create persists the account. Returns ErrDuplicate when the username
	// or email is already taken.
	Create(ctx context.Context, a *domain.Account) error
}
