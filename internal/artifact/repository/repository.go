package repository

import (
	"context"

	"gradevault/backend/internal/artifact/domain"
)

// Repository defines persistence for artifacts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Artifact, error)
	Create(ctx context.Context, a *domain.Artifact) error
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Artifact, error)
	ListByCourse(ctx context.Context, courseID string) ([]*domain.Artifact, error)
}
