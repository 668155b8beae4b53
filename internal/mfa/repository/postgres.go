package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gradevault/backend/internal/mfa/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a one-time credential repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the credential. The credential must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.OneTimeCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO one_time_credentials (id, user_id, email, code_hash, used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.Email, c.CodeHash, c.Used, c.ExpiresAt, c.CreatedAt,
	)
	return err
}

// GetLatestForUser returns the newest unused credential for the user, or nil if not found.
func (r *PostgresRepository) GetLatestForUser(ctx context.Context, userID string) (*domain.OneTimeCredential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, email, code_hash, used, expires_at, created_at
		FROM one_time_credentials
		WHERE user_id = $1 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1`,
		userID,
	)
	var c domain.OneTimeCredential
	err := row.Scan(&c.ID, &c.UserID, &c.Email, &c.CodeHash, &c.Used, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// MarkUsed marks the credential consumed so it cannot satisfy another challenge.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE one_time_credentials SET used = TRUE WHERE id = $1`, id)
	return err
}

// DeleteExpired removes credentials that expired before cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM one_time_credentials WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
