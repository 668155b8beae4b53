package repository

import (
	"context"
	"database/sql"
	"errors"

	"gradevault/backend/internal/identity/domain"
)

const userColumns = `id, name, email, role, password_hash, public_key_pem, private_key_pem, totp_secret, mfa_enabled, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash,
		&u.PublicKeyPEM, &u.PrivateKeyPEM, &u.TOTPSecret, &u.MFAEnabled, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Name, u.Email, u.Role, u.PasswordHash,
		u.PublicKeyPEM, u.PrivateKeyPEM, u.TOTPSecret, u.MFAEnabled, u.CreatedAt,
	)
	return err
}

// List returns all users ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateRole changes the user's role and key material in one statement.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role domain.Role, publicKeyPEM, privateKeyPEM string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = $2, public_key_pem = $3, private_key_pem = $4 WHERE id = $1`,
		id, role, publicKeyPEM, privateKeyPEM,
	)
	return err
}

// UpdateTOTPSecret stores a pending authenticator secret for the user.
func (r *PostgresRepository) UpdateTOTPSecret(ctx context.Context, id string, secret string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET totp_secret = $2 WHERE id = $1`, id, secret)
	return err
}

// EnableMFA marks the user's authenticator enrollment confirmed.
func (r *PostgresRepository) EnableMFA(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET mfa_enabled = TRUE WHERE id = $1`, id)
	return err
}

// Delete removes the user by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}
