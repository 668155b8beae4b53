package repository

import (
	"context"
	"database/sql"
	"errors"

	"gradevault/backend/internal/endorsement/domain"
)

const endorsementColumns = `id, artifact_id, signer_id, score, remarks, signature, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an endorsement repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanEndorsement(row interface{ Scan(...any) error }) (*domain.Endorsement, error) {
	var e domain.Endorsement
	err := row.Scan(&e.ID, &e.ArtifactID, &e.SignerID, &e.Score, &e.Remarks, &e.Signature, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// GetByArtifact returns the endorsement for the artifact, or nil if not graded yet.
func (r *PostgresRepository) GetByArtifact(ctx context.Context, artifactID string) (*domain.Endorsement, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+endorsementColumns+` FROM endorsements WHERE artifact_id = $1`, artifactID)
	return scanEndorsement(row)
}

// Create persists the endorsement. The endorsement must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Endorsement) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO endorsements (`+endorsementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ArtifactID, e.SignerID, e.Score, e.Remarks, e.Signature, e.CreatedAt,
	)
	return err
}

// ListBySigner returns endorsements made by the signer, newest first.
func (r *PostgresRepository) ListBySigner(ctx context.Context, signerID string) ([]*domain.Endorsement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+endorsementColumns+` FROM endorsements
		WHERE signer_id = $1 ORDER BY created_at DESC`, signerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.Endorsement
	for rows.Next() {
		e, err := scanEndorsement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
