package repository

import (
	"context"
	"database/sql"
	"errors"

	"gradevault/backend/internal/course/domain"
)

const courseColumns = `id, code, title, grader_id, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a course repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanCourse(row interface{ Scan(...any) error }) (*domain.Course, error) {
	var c domain.Course
	var graderID sql.NullString
	err := row.Scan(&c.ID, &c.Code, &c.Title, &graderID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.GraderID = graderID.String
	return &c, nil
}

// GetByID returns the course for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Course, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	return scanCourse(row)
}

// GetByCode returns the course for code, or nil if not found.
func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (*domain.Course, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE code = $1`, code)
	return scanCourse(row)
}

// Create persists the course. The course must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Course) error {
	graderID := sql.NullString{String: c.GraderID, Valid: c.GraderID != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Code, c.Title, graderID, c.CreatedAt,
	)
	return err
}

// List returns all courses ordered by code.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Course, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []*domain.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// AssignGrader sets the course's grader.
func (r *PostgresRepository) AssignGrader(ctx context.Context, id, graderID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE courses SET grader_id = $2 WHERE id = $1`, id, graderID)
	return err
}
