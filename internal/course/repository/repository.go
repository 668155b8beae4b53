package repository

import (
	"context"

	"gradevault/backend/internal/course/domain"
)

// Repository defines persistence for courses.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Course, error)
	GetByCode(ctx context.Context, code string) (*domain.Course, error)
	Create(ctx context.Context, c *domain.Course) error
	List(ctx context.Context) ([]*domain.Course, error)
	AssignGrader(ctx context.Context, id, graderID string) error
}
