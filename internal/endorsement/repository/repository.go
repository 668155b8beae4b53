package repository

import (
	"context"

	"gradevault/backend/internal/endorsement/domain"
)

// Repository defines persistence for endorsements.
type Repository interface {
	GetByArtifact(ctx context.Context, artifactID string) (*domain.Endorsement, error)
	Create(ctx context.Context, e *domain.Endorsement) error
	ListBySigner(ctx context.Context, signerID string) ([]*domain.Endorsement, error)
}
