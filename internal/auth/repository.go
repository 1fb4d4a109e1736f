package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riverside-fc/backend/internal/models"
)

// Repository handles admin persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const adminColumns = `id, email, password_hash, full_name, created_at`

func scanAdmin(row pgx.Row) (*models.Admin, error) {
	var a models.Admin
	err := row.Scan(&a.ID, &a.Email, &a.Password, &a.FullName, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID returns an admin by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	return scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
}

// GetByEmail returns an admin by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = $1`, normalizeEmail(email)))
}

// Create inserts an admin with an already hashed password. An existing
// email is left untouched and returned.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string) (*models.Admin, error) {
	const q = `INSERT INTO admins (email, password_hash, full_name) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING ` + adminColumns
	return scanAdmin(r.pool.QueryRow(ctx, q, normalizeEmail(email), passwordHash, fullName))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
