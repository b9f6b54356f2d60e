package users

import (
	"context"

	"dawailo/internal/ports/auth"
)

type Repository interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// ListByRole ordena por created_at desc (más reciente primero).
	ListByRole(ctx context.Context, role auth.Role) ([]User, error)
	// Search busca por substring (case-insensitive) en nombre o email.
	Search(ctx context.Context, role auth.Role, query string) ([]User, error)
}
