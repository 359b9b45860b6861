package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blog-platform/auth-service/internal/account/domain"
)

const uniqueViolationCode = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an account repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, `
		SELECT id, username, email, password_hash, avatar_url, is_active, created_at
		FROM accounts
		WHERE id = $1`,
		id,
	)
}

// GetByIdentifier returns the account whose email or username equals the
// identifier, or nil if no account matches.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	return r.getOne(ctx, `
		SELECT id, username, email, password_hash, avatar_url, is_active, created_at
		FROM accounts
		WHERE email = $1 OR username = $1`,
		identifier,
	)
}

// Create persists the account. A unique-constraint violation on username or
// email surfaces as ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, avatar_url, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Username, a.Email, a.PasswordHash, a.AvatarURL, a.IsActive, a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.AvatarURL, &a.IsActive, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &a, nil
}
