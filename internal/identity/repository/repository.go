package repository

import (
	"context"

	"gradevault/backend/internal/identity/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	List(ctx context.Context) ([]*domain.User, error)
	// UpdateRole changes the user's role together with the key material the
	// new role entitles them to.
	UpdateRole(ctx context.Context, id string, role domain.Role, publicKeyPEM, privateKeyPEM string) error
	UpdateTOTPSecret(ctx context.Context, id string, secret string) error
	EnableMFA(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
