package repository

import (
	"context"
	"time"

	"gradevault/backend/internal/mfa/domain"
)

// Repository defines persistence for one-time credentials.
type Repository interface {
	Create(ctx context.Context, c *domain.OneTimeCredential) error
	// GetLatestForUser returns the most recently issued unused credential
	// for the user, or nil if none exists.
	GetLatestForUser(ctx context.Context, userID string) (*domain.OneTimeCredential, error)
	MarkUsed(ctx context.Context, id string) error
	// DeleteExpired removes credentials that expired before the cutoff and
	// returns how many rows were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefaultCredentialTTL is the default mailed OTP expiry.
const DefaultCredentialTTL = 5 * time.Minute
