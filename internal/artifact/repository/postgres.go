package repository

import (
	"context"
	"database/sql"
	"errors"

	"gradevault/backend/internal/artifact/domain"
)

const artifactColumns = `id, course_id, owner_id, filename, ciphertext, wrapped_key, payload_hash, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an artifact repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanArtifact(row interface{ Scan(...any) error }) (*domain.Artifact, error) {
	var a domain.Artifact
	err := row.Scan(&a.ID, &a.CourseID, &a.OwnerID, &a.Filename,
		&a.Ciphertext, &a.WrappedKey, &a.PayloadHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// GetByID returns the artifact for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Artifact, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`, id)
	return scanArtifact(row)
}

// Create persists the artifact. The artifact must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Artifact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.CourseID, a.OwnerID, a.Filename,
		a.Ciphertext, a.WrappedKey, a.PayloadHash, a.CreatedAt,
	)
	return err
}

// ListByOwner returns the owner's artifacts, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+artifactColumns+` FROM artifacts
		WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

// ListByCourse returns the course's artifacts, newest first.
func (r *PostgresRepository) ListByCourse(ctx context.Context, courseID string) ([]*domain.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+artifactColumns+` FROM artifacts
		WHERE course_id = $1 ORDER BY created_at DESC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArtifacts(rows)
}

func collectArtifacts(rows *sql.Rows) ([]*domain.Artifact, error) {
	var artifacts []*domain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
